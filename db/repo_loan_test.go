package db

import (
	"context"
	"sync"
	"testing"

	"github.com/Mohammedr4/library-management-system/models"

	"github.com/stretchr/testify/require"
)

func openLoanCount(t *testing.T, r *Repo, bookID string) int64 {
	t.Helper()
	n, err := CountOpenLoansForBook(r.DB, bookID)
	require.NoError(t, err)
	return n
}

// 每次借还完成后核对不变式：available == total - open
func requireInvariant(t *testing.T, r *Repo, bookID string) {
	t.Helper()
	b, err := r.FindBookByID(context.Background(), bookID)
	require.NoError(t, err)
	require.Equal(t, int64(b.TotalCopies)-openLoanCount(t, r, bookID), int64(b.AvailableCopies))
}

func TestBorrowReturnRoundTrip(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	u := seedUser(t, r)
	b := seedBook(t, r, 2)

	loan, err := r.BorrowBook(ctx, u.ID, b.ID, nil, "desk copy")
	require.NoError(t, err)
	require.True(t, loan.Open())
	require.Equal(t, u.ID, loan.UserID)
	require.Equal(t, 1, bookAvailable(t, r, b.ID))
	requireInvariant(t, r, b.ID)

	closed, err := r.ReturnBook(ctx, u.ID, b.ID)
	require.NoError(t, err)
	require.False(t, closed.Open())
	require.NotNil(t, closed.ReturnedAt)
	require.False(t, closed.ReturnedAt.Before(closed.BorrowedAt))

	// 回到借之前的可借数，且只留一条已归还记录
	require.Equal(t, 2, bookAvailable(t, r, b.ID))
	requireInvariant(t, r, b.ID)
	ls, err := r.ListLoans(ctx, LoansFilter{UserID: u.ID, BookID: b.ID})
	require.NoError(t, err)
	require.Len(t, ls, 1)
	require.NotNil(t, ls[0].ReturnedAt)
}

func TestBorrowUnavailableUntilReturned(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	u1 := seedUser(t, r)
	u2 := seedUser(t, r)
	b := seedBook(t, r, 1)

	_, err := r.BorrowBook(ctx, u1.ID, b.ID, nil, "")
	require.NoError(t, err)
	require.Equal(t, 0, bookAvailable(t, r, b.ID))

	_, err = r.BorrowBook(ctx, u2.ID, b.ID, nil, "")
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, 0, bookAvailable(t, r, b.ID))

	_, err = r.ReturnBook(ctx, u1.ID, b.ID)
	require.NoError(t, err)
	require.Equal(t, 1, bookAvailable(t, r, b.ID))

	// 归还之后第二位读者就能借了
	_, err = r.BorrowBook(ctx, u2.ID, b.ID, nil, "")
	require.NoError(t, err)
	requireInvariant(t, r, b.ID)
}

func TestBorrowTwiceSameUser(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	u := seedUser(t, r)
	b := seedBook(t, r, 3)

	_, err := r.BorrowBook(ctx, u.ID, b.ID, nil, "")
	require.NoError(t, err)

	// 重复借被唯一部分索引拦下，占掉的副本要退回来
	_, err = r.BorrowBook(ctx, u.ID, b.ID, nil, "")
	require.ErrorIs(t, err, ErrLoanAlreadyOpen)

	require.Equal(t, 2, bookAvailable(t, r, b.ID))
	ls, err := r.ListLoans(ctx, LoansFilter{UserID: u.ID, BookID: b.ID})
	require.NoError(t, err)
	require.Len(t, ls, 1)
}

func TestReturnWithoutBorrow(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	u := seedUser(t, r)
	b := seedBook(t, r, 1)

	_, err := r.ReturnBook(ctx, u.ID, b.ID)
	require.ErrorIs(t, err, ErrNoOpenLoan)
	require.Equal(t, 1, bookAvailable(t, r, b.ID))
}

func TestReturnTwice(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	u := seedUser(t, r)
	b := seedBook(t, r, 1)

	_, err := r.BorrowBook(ctx, u.ID, b.ID, nil, "")
	require.NoError(t, err)
	_, err = r.ReturnBook(ctx, u.ID, b.ID)
	require.NoError(t, err)

	// 第二次还：记录已关闭，查不到未归还的 Loan
	_, err = r.ReturnBook(ctx, u.ID, b.ID)
	require.ErrorIs(t, err, ErrNoOpenLoan)
	require.Equal(t, 1, bookAvailable(t, r, b.ID))
}

func TestBorrowBookNotFound(t *testing.T) {
	r := testRepo(t)
	u := seedUser(t, r)

	_, err := r.BorrowBook(context.Background(), u.ID, "00000000-0000-0000-0000-000000000000", nil, "")
	require.ErrorIs(t, err, ErrBookNotFound)
}

func TestConcurrentBorrowLastCopy(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	u1 := seedUser(t, r)
	u2 := seedUser(t, r)
	b := seedBook(t, r, 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, uid := range []string{u1.ID, u2.ID} {
		wg.Add(1)
		go func(i int, uid string) {
			defer wg.Done()
			_, errs[i] = r.BorrowBook(ctx, uid, b.ID, nil, "")
		}(i, uid)
	}
	wg.Wait()

	// 恰好一个成功，另一个看到没副本
	var ok, unavailable int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		default:
			require.ErrorIs(t, err, ErrUnavailable)
			unavailable++
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, unavailable)
	require.Equal(t, 0, bookAvailable(t, r, b.ID))
	requireInvariant(t, r, b.ID)
}

func TestConcurrentDuplicateBorrowSameUser(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	u := seedUser(t, r)
	b := seedBook(t, r, 5)

	const workers = 4
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.BorrowBook(ctx, u.ID, b.ID, nil, "")
		}(i)
	}
	wg.Wait()

	// 只允许一条未归还；输家的事务连占掉的副本一起回滚
	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			require.ErrorIs(t, err, ErrLoanAlreadyOpen)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, int64(1), openLoanCount(t, r, b.ID))
	require.Equal(t, 4, bookAvailable(t, r, b.ID))
	requireInvariant(t, r, b.ID)
}

func TestForceReturnRecordsActor(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	reader := seedUser(t, r)
	staff := seedUser(t, r)
	require.NoError(t, r.SetUserStaff(ctx, staff.ID, true))
	b := seedBook(t, r, 1)

	_, err := r.BorrowBook(ctx, reader.ID, b.ID, nil, "")
	require.NoError(t, err)

	loan, err := r.ForceReturn(ctx, reader.ID, b.ID, staff.ID, staff.Email, "left at desk")
	require.NoError(t, err)
	require.NotNil(t, loan.ReturnedAt)
	require.NotNil(t, loan.ReturnedBy)
	require.Equal(t, staff.ID, *loan.ReturnedBy)
	require.Equal(t, 1, bookAvailable(t, r, b.ID))

	var audits []models.AuditLog
	require.NoError(t, r.DB.Where("loan_id = ?", loan.ID).Find(&audits).Error)
	require.Len(t, audits, 1)
	require.Equal(t, "force_return", audits[0].Action)
	require.Equal(t, staff.ID, audits[0].ActorID)
}

func TestDeleteOpenLoanReleasesCopy(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	u := seedUser(t, r)
	staff := seedUser(t, r)
	b := seedBook(t, r, 1)

	loan, err := r.BorrowBook(ctx, u.ID, b.ID, nil, "")
	require.NoError(t, err)
	require.Equal(t, 0, bookAvailable(t, r, b.ID))

	require.NoError(t, r.DeleteLoan(ctx, loan.ID, staff.ID))
	require.Equal(t, 1, bookAvailable(t, r, b.ID))
	require.Equal(t, int64(0), openLoanCount(t, r, b.ID))

	require.ErrorIs(t, r.DeleteLoan(ctx, loan.ID, staff.ID), ErrLoanNotFound)
}

func TestListLoansFilters(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	u := seedUser(t, r)
	b1 := seedBook(t, r, 1)
	b2 := seedBook(t, r, 1)

	_, err := r.BorrowBook(ctx, u.ID, b1.ID, nil, "")
	require.NoError(t, err)
	_, err = r.BorrowBook(ctx, u.ID, b2.ID, nil, "")
	require.NoError(t, err)
	_, err = r.ReturnBook(ctx, u.ID, b1.ID)
	require.NoError(t, err)

	open, err := r.ListOpenLoansForUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, b2.ID, open[0].BookID)

	returned, err := r.ListLoans(ctx, LoansFilter{UserID: u.ID, Status: "returned"})
	require.NoError(t, err)
	require.Len(t, returned, 1)
	require.Equal(t, b1.ID, returned[0].BookID)

	all, err := r.ListLoans(ctx, LoansFilter{UserID: u.ID})
	require.NoError(t, err)
	require.Len(t, all, 2)
}
