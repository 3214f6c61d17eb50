package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("connection refused")
	err := Wrap(CodeDelivery, cause, "forward webhook")

	if !stdErrors.Is(err, cause) {
		t.Fatal("expected wrapped error to match its cause")
	}
	if err.Code() != CodeDelivery {
		t.Fatalf("expected code %s, got %s", CodeDelivery, err.Code())
	}
}

func TestAsUnwrapsThroughFmtErrorf(t *testing.T) {
	inner := New(CodeNotFound, "webhook subscription not found")
	outer := fmt.Errorf("processing event: %w", inner)

	typed := As(outer)
	if typed == nil {
		t.Fatal("expected typed error from wrapped chain")
	}
	if typed.Code() != CodeNotFound {
		t.Fatalf("expected code %s, got %s", CodeNotFound, typed.Code())
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	meta := MetadataFor(Code("NO_SUCH_CODE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", meta.HTTPStatus)
	}
}

func TestMetadataForDomainCodes(t *testing.T) {
	if got := MetadataFor(CodeInactive).HTTPStatus; got != http.StatusUnprocessableEntity {
		t.Fatalf("inactive: expected 422, got %d", got)
	}
	if got := MetadataFor(CodeDelivery).HTTPStatus; got != http.StatusBadGateway {
		t.Fatalf("delivery: expected 502, got %d", got)
	}
	if !MetadataFor(CodeDelivery).Retryable {
		t.Fatal("delivery failures should be retryable")
	}
}

func TestIsCode(t *testing.T) {
	err := New(CodeInactive, "subscription is not active")
	if !IsCode(err, CodeInactive) {
		t.Fatal("expected IsCode to match")
	}
	if IsCode(err, CodeNotFound) {
		t.Fatal("expected IsCode mismatch for different code")
	}
	if IsCode(stdErrors.New("plain"), CodeInternal) {
		t.Fatal("plain errors carry no code")
	}
}

func TestDumpCollectsChain(t *testing.T) {
	cause := stdErrors.New("dial tcp: timeout")
	err := Wrap(CodeDelivery, cause, "post callback")

	dump := Dump(err)
	if dump.Code != CodeDelivery {
		t.Fatalf("expected code in dump, got %q", dump.Code)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected 2 chain entries, got %d", len(dump.Chain))
	}
	if dump.PGCode != "" {
		t.Fatalf("no postgres details expected for plain errors, got %q", dump.PGCode)
	}
}

func TestDumpExtractsPostgresDetails(t *testing.T) {
	cause := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "idx_users_email",
		TableName:      "users",
		Detail:         "Key (email) already exists.",
		Message:        "duplicate key value violates unique constraint",
	}
	dump := Dump(Wrap(CodeConflict, cause, "create user"))

	if dump.PGCode != "23505" {
		t.Fatalf("expected sqlstate in dump, got %q", dump.PGCode)
	}
	if dump.PGConstraint != "idx_users_email" || dump.PGTable != "users" {
		t.Fatalf("expected constraint diagnostics, got %+v", dump)
	}
}

func TestDumpExtractsPQDetails(t *testing.T) {
	cause := &pq.Error{
		Code:    "42P01",
		Message: `relation "webhook_events" does not exist`,
		Table:   "webhook_events",
	}
	dump := Dump(fmt.Errorf("sweep failed: %w", cause))

	if dump.PGCode != "42P01" {
		t.Fatalf("expected sqlstate in dump, got %q", dump.PGCode)
	}
	if dump.PGTable != "webhook_events" {
		t.Fatalf("expected table diagnostics, got %+v", dump)
	}
}
