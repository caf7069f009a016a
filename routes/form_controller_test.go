package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbox/formbox/model"
)

func TestDashboardListsOnlyOwnForms(t *testing.T) {
	app := newTestApp(t)
	h := Wire(app)

	alice := registerAndLogin(t, h, "alice")
	bob := registerAndLogin(t, h, "bob")

	createForm(t, h, alice, model.Form{Title: "Feedback"})
	createForm(t, h, alice, model.Form{Title: "Signup"})
	createForm(t, h, bob, model.Form{Title: "Quiz"})

	w := doRequest(t, h, "GET", "/api/forms", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Forms []model.Form `json:"forms"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Forms, 2)
	assert.Equal(t, "Feedback", body.Forms[0].Title)
	assert.Equal(t, "Signup", body.Forms[1].Title)
}

func TestCreateFormRejectsUnknownQuestionType(t *testing.T) {
	app := newTestApp(t)
	h := Wire(app)

	token := registerAndLogin(t, h, "alice")

	w := doRequest(t, h, "POST", "/api/forms", token, model.Form{
		Title: "Feedback",
		Questions: []model.Question{
			{Content: "Name", Type: "essay"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var forms int
	require.NoError(t, app.QueryRow(`SELECT count(*) FROM form`).Scan(&forms))
	assert.Zero(t, forms, "invalid form must not be partially persisted")
}

func TestGetFormKeepsQuestionOrder(t *testing.T) {
	app := newTestApp(t)
	h := Wire(app)

	token := registerAndLogin(t, h, "alice")
	formId := createForm(t, h, token, model.Form{
		Title: "Feedback",
		Questions: []model.Question{
			{Content: "Name", Type: model.QuestionShortText},
			{Content: "Comments", Type: model.QuestionParagraph},
			{Content: "Rating", Type: model.QuestionSingleChoice, Options: []string{"1", "2", "3"}},
		},
	})

	form := getForm(t, h, token, formId)
	require.Len(t, form.Questions, 3)
	assert.Equal(t, "Name", form.Questions[0].Content)
	assert.Equal(t, "Comments", form.Questions[1].Content)
	assert.Equal(t, "Rating", form.Questions[2].Content)
	assert.Equal(t, []string{"1", "2", "3"}, form.Questions[2].Options)
	assert.Empty(t, form.Questions[0].Options)
}

func TestGetFormNotFound(t *testing.T) {
	app := newTestApp(t)
	h := Wire(app)

	token := registerAndLogin(t, h, "alice")

	w := doRequest(t, h, "GET", "/api/forms/999", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, h, "GET", "/api/forms/999/public", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteFormCascades(t *testing.T) {
	app := newTestApp(t)
	h := Wire(app)

	token := registerAndLogin(t, h, "alice")
	formId := createForm(t, h, token, model.Form{
		Title: "Feedback",
		Questions: []model.Question{
			{Content: "Name", Type: model.QuestionShortText},
		},
	})

	form := getForm(t, h, token, formId)
	w := doRequest(t, h, "POST", fmt.Sprintf("/api/forms/%d/submissions", formId), token, model.Submission{
		Answers: map[string]any{strconv.Itoa(form.Questions[0].ID): "Alice"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(t, h, "DELETE", fmt.Sprintf("/api/forms/%d", formId), token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	for _, table := range []string{"form", "question", "response", "answer", "mirror_outbox"} {
		var n int
		require.NoError(t, app.QueryRow(`SELECT count(*) FROM `+table).Scan(&n))
		assert.Zero(t, n, "table %s must be empty after cascade", table)
	}
}

func TestDeleteFormNotOwner(t *testing.T) {
	app := newTestApp(t)
	h := Wire(app)

	alice := registerAndLogin(t, h, "alice")
	bob := registerAndLogin(t, h, "bob")

	formId := createForm(t, h, alice, model.Form{Title: "Feedback"})

	w := doRequest(t, h, "DELETE", fmt.Sprintf("/api/forms/%d", formId), bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var forms int
	require.NoError(t, app.QueryRow(`SELECT count(*) FROM form`).Scan(&forms))
	assert.Equal(t, 1, forms)
}
