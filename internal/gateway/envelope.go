package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/Pr4c0w1ty/whispering/internal/apperr"
)

// Envelope is the normalized response to one external request: either
// {"isSuccess":true,"data":...} or {"isSuccess":false,"error":{...}}.
type Envelope struct {
	IsSuccess bool
	Data      any
	Error     *apperr.Error
}

// Success wraps a collaborator result.
func Success(data any) Envelope {
	return Envelope{IsSuccess: true, Data: data}
}

// Failure wraps any error as a domain error.
func Failure(err error) Envelope {
	ae := apperr.From(err)
	if ae == nil {
		ae = apperr.New(apperr.KindInternal, "Unexpected error", "failure without an error")
	}
	return Envelope{Error: ae}
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.IsSuccess {
		return json.Marshal(struct {
			IsSuccess bool `json:"isSuccess"`
			Data      any  `json:"data"`
		}{true, e.Data})
	}
	return json.Marshal(struct {
		IsSuccess bool          `json:"isSuccess"`
		Error     *apperr.Error `json:"error"`
	}{false, e.Error})
}

func (e *Envelope) UnmarshalJSON(b []byte) error {
	var w struct {
		IsSuccess *bool         `json:"isSuccess"`
		Data      any           `json:"data"`
		Error     *apperr.Error `json:"error"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if w.IsSuccess == nil {
		return fmt.Errorf("envelope missing isSuccess")
	}
	e.IsSuccess = *w.IsSuccess
	e.Data = w.Data
	e.Error = w.Error
	if !e.IsSuccess && e.Error == nil {
		return fmt.Errorf("failure envelope missing error")
	}
	return nil
}
