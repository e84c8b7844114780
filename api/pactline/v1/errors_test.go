package pactlinev1

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ppiankov/pactline/internal/model"
)

func TestCodeMapping(t *testing.T) {
	tests := []struct {
		kind model.Kind
		want codes.Code
	}{
		{model.KindNotFound, codes.NotFound},
		{model.KindVersionConflict, codes.Aborted},
		{model.KindIllegalTransition, codes.FailedPrecondition},
		{model.KindQuotaExhausted, codes.ResourceExhausted},
		{model.KindRateLimited, codes.ResourceExhausted},
		{model.KindOutOfBounds, codes.InvalidArgument},
		{model.KindLockedFieldMutation, codes.InvalidArgument},
		{model.KindInvalidMode, codes.InvalidArgument},
		{model.KindInvalidArgument, codes.InvalidArgument},
	}
	for _, tt := range tests {
		if got := Code(tt.kind); got != tt.want {
			t.Errorf("Code(%s) = %s, want %s", tt.kind, got, tt.want)
		}
	}
}

func TestStatusRoundTripKeepsFields(t *testing.T) {
	fe := model.FieldErrors{}
	fe.Add("usageCount", model.FieldError(model.KindOutOfBounds, "usageCount", "above maximum", "5000"))
	fe.Add("environment", model.FieldError(model.KindLockedFieldMutation, "environment", "locked", ""))
	src := fmt.Errorf("propose: %w", model.FromFields(fe))

	st := status.Convert(ToStatus(src))
	if st.Code() != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %s", st.Code())
	}

	back := FromStatus(st.Err())
	me, ok := model.AsError(back)
	if !ok {
		t.Fatalf("expected a typed error, got %v", back)
	}
	if me.Key != "environment" || me.Fields.Len() != 2 {
		t.Errorf("unexpected error %+v", me)
	}
	if !errors.Is(back, model.ErrOutOfBounds) || !errors.Is(back, model.ErrLockedFieldMutation) {
		t.Error("expected both kinds to match after the round trip")
	}
}

func TestStatusKeepsHint(t *testing.T) {
	err := ToStatus(model.FieldError(model.KindOutOfBounds, "usageCount", "above maximum", "5000"))
	me, ok := model.AsError(FromStatus(err))
	if !ok || me.Hint != "5000" || me.Kind != model.KindOutOfBounds {
		t.Errorf("unexpected %+v", me)
	}
}

func TestToStatusUntypedErrors(t *testing.T) {
	if c := status.Code(ToStatus(errors.New("disk full"))); c != codes.Internal {
		t.Errorf("expected Internal, got %s", c)
	}
	if c := status.Code(ToStatus(context.DeadlineExceeded)); c != codes.DeadlineExceeded {
		t.Errorf("expected DeadlineExceeded, got %s", c)
	}
	if ToStatus(nil) != nil {
		t.Error("expected nil")
	}
	plain := status.Error(codes.Unavailable, "down")
	if FromStatus(plain) != plain {
		t.Error("expected status without details to pass through")
	}
}
