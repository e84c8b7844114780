package pactlinev1

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ppiankov/pactline/internal/model"
)

// ErrorDomain tags the ErrorInfo detail of every engine error.
const ErrorDomain = "pactline"

// Metadata keys of the ErrorInfo detail.
const (
	metaKey    = "key"
	metaHint   = "hint"
	metaFields = "fields"
)

// Code maps an error kind onto a gRPC code.
func Code(kind model.Kind) codes.Code {
	switch kind {
	case model.KindNotFound:
		return codes.NotFound
	case model.KindVersionConflict:
		return codes.Aborted
	case model.KindIllegalTransition:
		return codes.FailedPrecondition
	case model.KindQuotaExhausted, model.KindRateLimited:
		return codes.ResourceExhausted
	case model.KindInvalidMode, model.KindOutOfBounds, model.KindLockedFieldMutation, model.KindInvalidArgument:
		return codes.InvalidArgument
	default:
		return codes.Unknown
	}
}

// ToStatus converts err into a gRPC status error. Typed engine errors keep
// their kind, key, hint and per-field errors in an ErrorInfo detail.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	me, ok := model.AsError(err)
	if !ok {
		return status.Error(codes.Internal, err.Error())
	}

	info := &errdetails.ErrorInfo{
		Reason:   string(me.Kind),
		Domain:   ErrorDomain,
		Metadata: map[string]string{},
	}
	if me.Key != "" {
		info.Metadata[metaKey] = me.Key
	}
	if me.Hint != "" {
		info.Metadata[metaHint] = me.Hint
	}
	if len(me.Fields) > 0 {
		if b, err := json.Marshal(me.Fields); err == nil {
			info.Metadata[metaFields] = string(b)
		}
	}
	st, derr := status.New(Code(me.Kind), me.Reason).WithDetails(info)
	if derr != nil {
		return status.Error(Code(me.Kind), me.Reason)
	}
	return st.Err()
}

// FromStatus restores the typed engine error carried by a status. Errors
// without a pactline ErrorInfo are returned unchanged.
func FromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok || st == nil {
		return err
	}
	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != ErrorDomain {
			continue
		}
		me := &model.Error{
			Kind:   model.Kind(info.GetReason()),
			Key:    info.GetMetadata()[metaKey],
			Reason: st.Message(),
			Hint:   info.GetMetadata()[metaHint],
		}
		if raw := info.GetMetadata()[metaFields]; raw != "" {
			var fields model.FieldErrors
			if json.Unmarshal([]byte(raw), &fields) == nil {
				me.Fields = fields
			}
		}
		return me
	}
	return err
}
