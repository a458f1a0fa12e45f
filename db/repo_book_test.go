package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

func TestCreateBookDefaults(t *testing.T) {
	r := testRepo(t)
	b := seedBook(t, r, 0) // 0 副本按 1 处理

	require.Equal(t, 1, b.TotalCopies)
	require.Equal(t, 1, b.AvailableCopies)
	require.True(t, b.Available())
}

func TestCreateBookISBNTaken(t *testing.T) {
	r := testRepo(t)
	b := seedBook(t, r, 1)

	_, err := r.CreateBook(context.Background(), CreateBookInput{
		Title: "Duplicate", Author: "Someone", ISBN: b.ISBN, TotalCopies: 1,
	})
	require.ErrorIs(t, err, ErrISBNTaken)
}

func TestUpdateBookRederivesAvailability(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	staff := seedUser(t, r)
	u := seedUser(t, r)
	b := seedBook(t, r, 3)

	_, err := r.BorrowBook(ctx, u.ID, b.ID, nil, "")
	require.NoError(t, err)
	require.Equal(t, 2, bookAvailable(t, r, b.ID))

	// 纠错：把总副本数从 3 提到 5，可借数按在借 1 本推导成 4
	got, err := r.UpdateBook(ctx, b.ID, staff.ID, UpdateBookInput{TotalCopies: intPtr(5)})
	require.NoError(t, err)
	require.Equal(t, 5, got.TotalCopies)
	require.Equal(t, 4, got.AvailableCopies)
	requireInvariant(t, r, b.ID)

	// 总数压到在借数以下要整单拒绝，库存不动
	_, err = r.UpdateBook(ctx, b.ID, staff.ID, UpdateBookInput{TotalCopies: intPtr(0)})
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, 4, bookAvailable(t, r, b.ID))
}

func TestUpdateBookFields(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	staff := seedUser(t, r)
	b := seedBook(t, r, 1)

	got, err := r.UpdateBook(ctx, b.ID, staff.ID, UpdateBookInput{
		Title: strPtr("Renamed"),
		Genre: strPtr("Reference"),
	})
	require.NoError(t, err)
	require.Equal(t, "Renamed", got.Title)
	require.Equal(t, "Reference", got.Genre)
	require.Equal(t, b.ISBN, got.ISBN)
	require.Equal(t, b.TotalCopies, got.TotalCopies)
}

func TestDeleteBookCascadesLoans(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	staff := seedUser(t, r)
	u := seedUser(t, r)
	b := seedBook(t, r, 1)

	_, err := r.BorrowBook(ctx, u.ID, b.ID, nil, "")
	require.NoError(t, err)

	require.NoError(t, r.DeleteBook(ctx, b.ID, staff.ID))

	_, err = r.FindBookByID(ctx, b.ID)
	require.ErrorIs(t, err, ErrBookNotFound)
	ls, err := r.ListLoans(ctx, LoansFilter{BookID: b.ID})
	require.NoError(t, err)
	require.Empty(t, ls)
}

func TestListBooksWithOpenLoans(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	u := seedUser(t, r)
	b := seedBook(t, r, 2)

	_, err := r.BorrowBook(ctx, u.ID, b.ID, nil, "")
	require.NoError(t, err)

	res, err := r.ListBooksWithOpenLoans(ctx, AdminBooksQuery{Q: b.ISBN})
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Total)
	require.Len(t, res.Books, 1)
	row := res.Books[0]
	require.Equal(t, b.ID, row.ID)
	require.Equal(t, int64(1), row.OpenLoans)
	require.Equal(t, 1, row.AvailableCopies)
	require.False(t, row.Overdue)
}
