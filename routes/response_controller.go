package routes

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/formbox/formbox/app"
	"github.com/formbox/formbox/httpx"
	"github.com/formbox/formbox/log"
	"github.com/formbox/formbox/model"
)

// GetFormResponses lists a form's responses with their answers. Owner only:
// anybody else is bounced back to the dashboard with no data.
func GetFormResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		var ownerId int
		err = app.QueryRowContext(r.Context(), `
			SELECT user_id FROM form WHERE id = ?`,
			formId,
		).Scan(&ownerId)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogNotFound(w, "get_responses", formId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.get_form", err)
			return
		}

		userId, _, err := currentUser(r.Context(), app)
		if err != nil {
			httpx.LogInternalError(w, "db.get_user", err)
			return
		}
		if ownerId != userId {
			log.Debugf("get_responses: not owner (%d)", formId)
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}

		rows, err := app.QueryContext(r.Context(), `
			SELECT
				rs.id, rs.time, u.username,
				q.content, a.content
			FROM response rs
			LEFT OUTER JOIN user u ON (u.id = rs.user_id)
			LEFT OUTER JOIN answer a ON (a.response_id = rs.id)
			LEFT OUTER JOIN question q ON (q.id = a.question_id)
			WHERE rs.form_id = ?
			ORDER BY rs.id, a.id`,
			formId,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.get_responses", err)
			return
		}
		defer rows.Close()

		responses := []model.Response{}
		for rows.Next() {
			var id int
			var tm time.Time
			var username, question, content sql.NullString
			err = rows.Scan(&id, &tm, &username, &question, &content)
			if err != nil {
				httpx.LogInternalError(w, "db.get_responses.scan", err)
				return
			}

			lastIdx := len(responses) - 1
			if lastIdx < 0 || responses[lastIdx].ID != id {
				respondent := anonymousLabel
				if username.Valid {
					respondent = username.String
				}
				responses = append(responses, model.Response{
					ID:         id,
					Time:       tm,
					Respondent: respondent,
					Answers:    []model.Answer{},
				})
				lastIdx++
			}

			if question.Valid {
				responses[lastIdx].Answers = append(responses[lastIdx].Answers, model.Answer{
					Question: question.String,
					Content:  content.String,
				})
			}
		}
		err = rows.Err()
		if err != nil {
			httpx.LogInternalError(w, "db.get_responses.rows", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"responses": responses,
		})
	}
}
