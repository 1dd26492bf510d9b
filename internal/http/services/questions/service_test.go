package questions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/enlacell/melibridge/internal/meli"
)

type fakeQA struct {
	answerCalls int
	answerErr   error

	questions map[string]*meli.Question
}

func (f *fakeQA) GetQuestion(ctx context.Context, accessToken, questionID string) (*meli.Question, error) {
	if q, ok := f.questions[questionID]; ok {
		return q, nil
	}
	return nil, &meli.ProviderError{StatusCode: 404, Body: "not found"}
}

func (f *fakeQA) PostAnswer(ctx context.Context, accessToken, questionID, text string) (json.RawMessage, error) {
	f.answerCalls++
	if f.answerErr != nil {
		return nil, f.answerErr
	}
	return json.RawMessage(`{"status":"ANSWERED"}`), nil
}

type errPools struct{ err error }

func (p *errPools) Pool(ctx context.Context, userID string) (*sql.DB, error) {
	return nil, p.err
}

func TestListUnansweredPoolError(t *testing.T) {
	wantErr := errors.New("tenant caído")
	s := NewService(Deps{Client: &fakeQA{}, Pools: &errPools{err: wantErr}})

	_, err := s.ListUnanswered(context.Background(), "tok", "123")
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

func TestAnswerProviderErrorPropagates(t *testing.T) {
	pe := &meli.ProviderError{StatusCode: 400, Body: "texto muy largo"}
	qa := &fakeQA{answerErr: pe}
	s := NewService(Deps{Client: qa, Pools: &errPools{err: errors.New("no importa")}})

	_, err := s.Answer(context.Background(), "tok", "123", "5036", "hay stock")
	var got *meli.ProviderError
	if !errors.As(err, &got) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
	if qa.answerCalls != 1 {
		t.Fatalf("answerCalls = %d", qa.answerCalls)
	}
}

func TestAnswerSurvivesCleanupFailure(t *testing.T) {
	// La respuesta ya salió al marketplace: un fallo al limpiar la tabla
	// no debe reportarse como error del caller.
	qa := &fakeQA{}
	s := NewService(Deps{Client: qa, Pools: &errPools{err: errors.New("mysql caído")}})

	raw, err := s.Answer(context.Background(), "tok", "123", "5036", "hay stock")
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) == 0 {
		t.Fatal("debe retornar la respuesta del proveedor")
	}
}

func TestQuestionIDFromResource(t *testing.T) {
	cases := map[string]string{
		"/questions/5036111111": "5036111111",
		"questions/42":          "42",
		"  /questions/7  ":      "7",
		"/":                     "",
	}
	for in, want := range cases {
		if got := questionIDFromResource(in); got != want {
			t.Errorf("questionIDFromResource(%q) = %q, want %q", in, got, want)
		}
	}
}
