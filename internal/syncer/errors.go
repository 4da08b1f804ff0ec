package syncer

import (
	"errors"

	"github.com/sells-group/dealsync/internal/model"
	"github.com/sells-group/dealsync/pkg/hubspot"
)

var kindCodes = map[hubspot.ErrorKind]model.ErrorCode{
	hubspot.KindAuth:       model.ErrCodeAuth,
	hubspot.KindScope:      model.ErrCodeScope,
	hubspot.KindNotFound:   model.ErrCodeNotFound,
	hubspot.KindConflict:   model.ErrCodeConflict,
	hubspot.KindValidation: model.ErrCodeValidation,
	hubspot.KindRateLimit:  model.ErrCodeRateLimit,
	hubspot.KindServer:     model.ErrCodeServer,
	hubspot.KindUnknown:    model.ErrCodeUnknown,
}

// classify maps a deal step failure to an error code and a message that
// can be shown to the user.
func classify(err error) (model.ErrorCode, string) {
	if errors.Is(err, errNoFields) {
		return model.ErrCodeNoFieldsToUpdate, "none of the allowed fields can be updated from this extraction"
	}

	var apiErr *hubspot.APIError
	if !errors.As(err, &apiErr) {
		return model.ErrCodeUnknown, err.Error()
	}
	code := kindCodes[apiErr.Kind]
	if code == "" {
		code = model.ErrCodeUnknown
	}

	switch apiErr.Kind {
	case hubspot.KindAuth:
		return code, "CRM authentication failed; reconnect the CRM account"
	case hubspot.KindScope:
		return code, "the CRM connection is missing permission to write deals"
	case hubspot.KindNotFound:
		return code, "the deal no longer exists in the CRM"
	case hubspot.KindRateLimit:
		return code, "the CRM rate limit was reached; try again shortly"
	case hubspot.KindServer:
		return code, "the CRM is temporarily unavailable; try again shortly"
	case hubspot.KindValidation, hubspot.KindConflict:
		return code, "the CRM rejected the deal: " + apiErr.Message
	default:
		return code, apiErr.Error()
	}
}
