package bizerror

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")

	ErrNotFound             = errors.New("record not found")
	ErrInvalidState         = errors.New("invalid state")
	ErrConflict             = errors.New("concurrent modification conflict")
	ErrNoMatchingTransition = errors.New("no matching transition")

	ErrUnknownStep             = errors.New("unknown step")
	ErrDefinitionCodeExisted   = errors.New("workflow definition code existed")
	ErrInvalidGraph            = errors.New("invalid workflow graph")
	ErrDefinitionIsReferenced  = errors.New("workflow definition is referenced")
	ErrExpressionNotSupported  = errors.New("expression evaluation is not supported")
	ErrMissingRejectionReason  = errors.New("rejection reason is required")
	ErrMissingDelegateAssignee = errors.New("delegate assignee is required")
)

type BizError interface {
	Respond() *BizErrorDetail
}

type BizErrorDetail struct {
	Status  int
	Code    string
	Message string

	Data  interface{}
	Cause error
}

type ErrBadParam struct {
	Cause error
}

func (e *ErrBadParam) Unwrap() error {
	return e.Cause
}
func (e *ErrBadParam) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "common.bad_param"
}
func (e *ErrBadParam) Respond() *BizErrorDetail {
	message := "common.bad_param"
	if e.Cause != nil {
		message = e.Cause.Error()
	}
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: "common.bad_param", Message: message, Data: nil}
}
