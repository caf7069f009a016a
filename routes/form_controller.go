package routes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/oauth"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/formbox/formbox/app"
	"github.com/formbox/formbox/httpx"
	"github.com/formbox/formbox/log"
	"github.com/formbox/formbox/model"
)

var validate = validator.New()

func CreateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form := model.Form{}
		err := render.DecodeJSON(r.Body, &form)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		err = validate.Struct(form)
		if err != nil {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "create_form.validate", "invalid form: %s", err)
			return
		}

		userId, _, err := currentUser(r.Context(), app)
		if err != nil {
			httpx.LogInternalError(w, "db.get_user", err)
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		var formId int
		err = tx.QueryRowContext(r.Context(), `
			INSERT INTO form (title, user_id) VALUES (?, ?)
			RETURNING id`,
			form.Title,
			userId,
		).Scan(&formId)
		if err != nil {
			httpx.LogInternalError(w, "db.insert_form", err)
			return
		}

		stmt, err := tx.PrepareContext(r.Context(), `
			INSERT INTO question (form_id, content, type, options)
			VALUES (?, ?, ?, ?)`)
		if err != nil {
			httpx.LogInternalError(w, "db.insert_form.questions.prepare", err)
			return
		}
		defer stmt.Close()

		for _, q := range form.Questions {
			var optionsJson []byte
			if len(q.Options) > 0 {
				optionsJson, err = json.Marshal(q.Options)
				if err != nil {
					httpx.LogInternalError(w, "db.insert_form.questions.parse_options", err)
					return
				}
			}
			_, err = stmt.ExecContext(r.Context(), formId, q.Content, q.Type, string(optionsJson))
			if err != nil {
				httpx.LogInternalError(w, "db.insert_form.questions.insert", err)
				return
			}
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, "db.insert_form.commit", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id": formId,
		})
	}
}

// ListForms is the dashboard: only the caller's own forms.
func ListForms(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userId, _, err := currentUser(r.Context(), app)
		if err != nil {
			httpx.LogInternalError(w, "db.get_user", err)
			return
		}

		rows, err := app.QueryContext(r.Context(), `
			SELECT f.id, f.title
			FROM form f
			WHERE f.user_id = ?
			ORDER BY f.id`,
			userId,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.get_forms", err)
			return
		}
		defer rows.Close()

		forms := []model.Form{}
		for rows.Next() {
			f := model.Form{}
			err = rows.Scan(&f.ID, &f.Title)
			if err != nil {
				httpx.LogInternalError(w, "db.get_forms.scan", err)
				return
			}

			forms = append(forms, f)
		}

		render.JSON(w, r, map[string]any{
			"forms": forms,
		})
	}
}

func GetFormById(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
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

		render.JSON(w, r, form)
	}
}

func DeleteForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		userId, _, err := currentUser(r.Context(), app)
		if err != nil {
			httpx.LogInternalError(w, "db.get_user", err)
			return
		}

		// cascades to questions, responses, answers and outbox rows
		res, err := app.ExecContext(r.Context(), `
			DELETE FROM form
			WHERE id = ?
				AND user_id = ?`,
			formId,
			userId,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.delete_form", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, "db.delete_form.verify", err)
			return
		}
		if n < 1 {
			httpx.LogNotFound(w, "delete_form", formId)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// queryForm loads a form and its questions in insertion order.
// Returns sql.ErrNoRows when the form does not exist.
func queryForm(ctx context.Context, app app.App, formId int) (form model.Form, err error) {
	rows, err := app.QueryContext(ctx, `
		SELECT
			f.id, f.title,
			q.id, q.content, q.type, q.options
		FROM form f
		LEFT OUTER JOIN question q ON (f.id = q.form_id)
		WHERE f.id = ?
		ORDER BY q.id`,
		formId,
	)
	if err != nil {
		return
	}
	defer rows.Close()

	if !rows.Next() {
		err = sql.ErrNoRows
		return
	}

	for {
		q := model.Question{}
		var qId sql.NullInt64
		var content, qType, opts sql.NullString
		err = rows.Scan(&form.ID, &form.Title, &qId, &content, &qType, &opts)
		if err != nil {
			return
		}

		// a form with no questions yields one all-NULL question row
		if qId.Valid {
			q.ID = int(qId.Int64)
			q.Content = content.String
			q.Type = qType.String
			if opts.String != "" {
				err = json.Unmarshal([]byte(opts.String), &q.Options)
				if err != nil {
					return
				}
			}
			form.Questions = append(form.Questions, q)
		}

		if !rows.Next() {
			break
		}
	}
	err = rows.Err()

	return
}

// currentUser resolves the session credential to a user row.
// The credential may be absent on public routes.
func currentUser(ctx context.Context, app app.App) (userId int, username string, err error) {
	username, _ = ctx.Value(oauth.CredentialContext).(string)
	if username == "" {
		return 0, "", nil
	}

	err = app.QueryRowContext(ctx, `
		SELECT id FROM user WHERE username = ?`,
		username,
	).Scan(&userId)
	if errors.Is(err, sql.ErrNoRows) {
		// token outlived the account: treat as anonymous
		return 0, "", nil
	}
	return
}
