package routes

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/formbox/formbox/app"
	"github.com/formbox/formbox/httpx"
	"github.com/formbox/formbox/log"
	"github.com/formbox/formbox/model"
)

// anonymousLabel is the respondent label mirrored for unattributed responses.
const anonymousLabel = "Anonymous"

// SubmitForm records one response: one answer per question of the form,
// missing values stored as empty strings, multi-value answers flattened to a
// comma-joined string. The mirrored spreadsheet row is written to the outbox
// in the same transaction, never sent inline.
func SubmitForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		submission := model.Submission{}
		err = render.DecodeJSON(r.Body, &submission)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		form, err := queryForm(r.Context(), app, formId)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogNotFound(w, "get_form", formId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.get_form", err)
			return
		}

		// public routes may carry no identity
		userId, username, err := currentUser(r.Context(), app)
		if err != nil {
			httpx.LogInternalError(w, "db.get_user", err)
			return
		}
		respondent := sql.NullInt64{Int64: int64(userId), Valid: userId != 0}
		label := username
		if label == "" {
			label = anonymousLabel
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		var responseId int
		err = tx.QueryRowContext(r.Context(), `
			INSERT INTO response (form_id, user_id, time) VALUES (?, ?, ?)
			RETURNING id`,
			formId,
			respondent,
			time.Now(),
		).Scan(&responseId)
		if err != nil {
			httpx.LogInternalError(w, "db.insert_response", err)
			return
		}

		stmt, err := tx.PrepareContext(r.Context(), `
			INSERT INTO answer (response_id, question_id, content)
			VALUES (?, ?, ?)`)
		if err != nil {
			httpx.LogInternalError(w, "db.insert_response.answers.prepare", err)
			return
		}
		defer stmt.Close()

		row := []string{label}
		for _, q := range form.Questions {
			content := flattenValue(submission.Answers[strconv.Itoa(q.ID)])
			row = append(row, content)

			_, err = stmt.ExecContext(r.Context(), responseId, q.ID, content)
			if err != nil {
				httpx.LogInternalError(w, "db.insert_response.answers.insert", err)
				return
			}
		}

		rowJson, err := json.Marshal(row)
		if err != nil {
			httpx.LogInternalError(w, "db.insert_response.mirror.parse_row", err)
			return
		}
		_, err = tx.ExecContext(r.Context(), `
			INSERT INTO mirror_outbox (response_id, row_json, next_attempt_at)
			VALUES (?, ?, ?)`,
			responseId,
			string(rowJson),
			time.Now(),
		)
		if err != nil {
			httpx.LogInternalError(w, "db.insert_response.mirror", err)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, "db.insert_response.commit", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id": responseId,
		})
	}
}

// flattenValue turns a submitted answer value into the single string stored
// on the answer row. Multi-select values lose their structure here.
func flattenValue(value any) string {
	switch value := value.(type) {
	case nil:
		return ""
	case string:
		return value
	case []any:
		parts := make([]string, len(value))
		for i, part := range value {
			parts[i] = fmt.Sprint(part)
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(value)
	}
}
