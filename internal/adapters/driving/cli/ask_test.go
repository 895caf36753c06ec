package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
)

func TestAskCmd_PrintsAnswer(t *testing.T) {
	ts := setupTestServices(t)
	ts.query.result = domain.QueryResult{Answer: "Le trafic est de 12 Mt."}

	out, err := execute(t, "ask", "quel", "trafic ?")
	require.NoError(t, err)
	assert.Equal(t, "quel trafic ?", ts.query.got.Question)
	assert.Empty(t, ts.query.got.SessionID)
	assert.Contains(t, out, "Le trafic est de 12 Mt.")
}

func TestAskCmd_Session(t *testing.T) {
	ts := setupTestServices(t)
	ts.query.result = domain.QueryResult{Answer: "ok"}

	_, err := execute(t, "ask", "--session", "abc", "q")
	require.NoError(t, err)
	assert.Equal(t, "abc", ts.query.got.SessionID)
}

func TestAskCmd_ErrorResult(t *testing.T) {
	ts := setupTestServices(t)
	ts.query.result = domain.QueryResult{Error: "Erreur interne : boom"}

	_, err := execute(t, "ask", "q")
	require.Error(t, err)
	assert.Equal(t, "Erreur interne : boom", err.Error())
}

func TestAskCmd_JSON(t *testing.T) {
	ts := setupTestServices(t)
	ts.query.result = domain.QueryResult{Error: "Erreur interne : boom"}

	out, err := execute(t, "ask", "--json", "q")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "Erreur interne : boom", decoded["error"])
}

func TestAskCmd_RequiresQuestion(t *testing.T) {
	setupTestServices(t)
	_, err := execute(t, "ask")
	assert.Error(t, err)
}
