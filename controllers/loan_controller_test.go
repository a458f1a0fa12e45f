package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Mohammedr4/library-management-system/db"

	"github.com/stretchr/testify/assert"
)

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{db.ErrUnavailable, http.StatusBadRequest},
		{db.ErrLoanAlreadyOpen, http.StatusBadRequest},
		{db.ErrAlreadyReturned, http.StatusBadRequest},
		{db.ErrISBNTaken, http.StatusBadRequest},
		{db.ErrEmailTaken, http.StatusBadRequest},
		{db.ErrBookNotFound, http.StatusNotFound},
		{db.ErrNoOpenLoan, http.StatusNotFound},
		{db.ErrLoanNotFound, http.StatusNotFound},
		{db.ErrUserNotFound, http.StatusNotFound},
		{errors.New("connection refused"), http.StatusInternalServerError},
		{fmt.Errorf("borrow: %w", db.ErrUnavailable), http.StatusBadRequest},
		{fmt.Errorf("lookup: %w", db.ErrBookNotFound), http.StatusNotFound},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusForError(tc.err), "error %q", tc.err)
	}
}
