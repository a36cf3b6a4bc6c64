package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"moonpulse/internal/domain"
)

const (
	Clarification = "I couldn't work out what you are asking for. Try \"top alerts today\", " +
		"\"project summary for 0x...\" with a contract address, or \"BTC social trend over 14 days\"."
	MissingAddress = "A project summary needs a contract address. Include a 0x-prefixed, 40 hex digit address in your question."
	NoData         = "No data available for this request."
)

// Error kinds carried in ErrorBody.Kind.
const (
	KindConfiguration = "configuration"
	KindUpstream      = "upstream"
	KindInternal      = "internal"
)

// Format wraps successful content in the response envelope. Raw upstream
// payloads pass through untouched when they are valid JSON.
func Format(query string, intent domain.Intent, content any) domain.FinalResponse {
	resp := domain.FinalResponse{Query: query, Intent: intent}
	switch c := content.(type) {
	case nil:
		if intent == domain.IntentUnresolved {
			resp.Result = Clarification
		}
	case json.RawMessage:
		if json.Valid(c) {
			resp.Result = c
		} else {
			resp.Result = string(c)
		}
	default:
		resp.Result = c
	}
	return resp
}

// Failure converts a pipeline error into the envelope. Missing or unusable
// series data is a successful answer, not an error.
func Failure(query string, intent domain.Intent, err error) domain.FinalResponse {
	if err == nil {
		return Format(query, intent, nil)
	}
	if domain.IsNoData(err) {
		return Format(query, intent, NoData)
	}

	body := &domain.ErrorBody{Kind: KindInternal, Message: err.Error()}
	var upstream *domain.UpstreamError
	switch {
	case errors.Is(err, domain.ErrConfiguration):
		body.Kind = KindConfiguration
	case errors.As(err, &upstream):
		body.Kind = KindUpstream
		body.UpstreamStatus = upstream.Status
	}
	return domain.FinalResponse{Query: query, Intent: intent, Error: body}
}

// HTTPStatus maps an envelope to the status code the HTTP front door uses.
func HTTPStatus(resp domain.FinalResponse) int {
	if resp.Error == nil {
		return http.StatusOK
	}
	if resp.Error.Kind == KindUpstream {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
