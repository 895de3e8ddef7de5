package executor

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/trendbot/internal/domain"
	"github.com/vadiminshakov/trendbot/internal/services/alert"
	"github.com/vadiminshakov/trendbot/internal/storage/ledger"
	exchangeMock "github.com/vadiminshakov/trendbot/mocks/exchange"
)

var pair = domain.Pair{From: "BTC", To: "USDT"}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func (n *recordingNotifier) Notify(_ context.Context, a alert.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
	return nil
}

func lot(t *testing.T) domain.LotConstraint {
	t.Helper()
	l, err := domain.NewLotConstraint("0.0001", "0.01")
	require.NoError(t, err)
	return l
}

func intent(t *testing.T, qty string) domain.OrderIntent {
	return domain.OrderIntent{
		Side:           domain.SideBuy,
		Quantity:       decimal.RequireFromString(qty),
		ReferencePrice: decimal.NewFromInt(50000),
		Lot:            lot(t),
	}
}

func clientID(prefix string) interface{} {
	return mock.MatchedBy(func(id string) bool { return strings.HasPrefix(id, prefix) })
}

func filledOrder(qty, price string) domain.PlacedOrder {
	return domain.PlacedOrder{
		ID:       "entry-1",
		Side:     domain.SideBuy,
		Quantity: decimal.RequireFromString(qty),
		Price:    decimal.RequireFromString(price),
	}
}

func newTestExecutor(t *testing.T, client *exchangeMock.Client) (*Executor, *ledger.Ledger, *recordingNotifier) {
	t.Helper()
	l := ledger.New(zap.NewNop(), nil)
	n := &recordingNotifier{}
	e, err := NewExecutor(client, pair, l, n, zap.NewNop(), WithReconcile(2, 0))
	require.NoError(t, err)
	return e, l, n
}

func TestExecute_EntryAndStopSucceed(t *testing.T) {
	client := exchangeMock.NewClient(t)
	client.On("SubmitMarketOrder", mock.Anything, pair, domain.SideBuy, "0.0004", clientID("tbe")).
		Return(filledOrder("0.0004", "50000"), nil).Once()
	client.On("SubmitStopLossOrder", mock.Anything, pair, domain.SideSell, "0.0004", "47500.00", clientID("tbs")).
		Return(domain.PlacedOrder{ID: "stop-1", Side: domain.SideSell, Quantity: decimal.RequireFromString("0.0004"), Price: decimal.NewFromInt(47500)}, nil).Once()

	e, l, n := newTestExecutor(t, client)
	result := e.Execute(context.Background(), intent(t, "0.0004"), decimal.RequireFromString("0.05"))

	require.NoError(t, result.Err())
	assert.Equal(t, StepSucceeded, result.Entry.Status)
	assert.Equal(t, StepSucceeded, result.Stop.Status)
	assert.True(t, result.StopPrice.Equal(decimal.NewFromInt(47500)))
	assert.Empty(t, n.alerts)

	entry, err := l.Get(result.EntryID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusProtected, entry.Status)
	assert.Equal(t, "stop-1", entry.StopOrderID)
}

func notFoundErr() error {
	return errors.Wrap(domain.ErrOrderNotFound, "lookup")
}

func TestExecute_EntryFailsStopNotAttempted(t *testing.T) {
	client := exchangeMock.NewClient(t)
	client.On("SubmitMarketOrder", mock.Anything, pair, domain.SideBuy, "0.0004", clientID("tbe")).
		Return(domain.PlacedOrder{}, domain.NewTransportError("submit market order", errors.New("timeout"))).Once()
	// the exchange never saw the order
	client.On("LookupOrder", mock.Anything, pair, clientID("tbe")).Return(domain.PlacedOrder{}, notFoundErr()).Twice()

	e, l, n := newTestExecutor(t, client)
	result := e.Execute(context.Background(), intent(t, "0.0004"), decimal.RequireFromString("0.05"))

	assert.Equal(t, StepFailed, result.Entry.Status)
	assert.Equal(t, StepNotAttempted, result.Stop.Status)
	assert.True(t, errors.Is(result.Err(), domain.ErrTransport))
	assert.False(t, result.Unprotected())
	assert.Empty(t, n.alerts, "transport failures are logged, not alerted")
	client.AssertNotCalled(t, "SubmitStopLossOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	entry, err := l.Get(result.EntryID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusEntryFailed, entry.Status)
}

func TestExecute_RejectedEntryIsAlerted(t *testing.T) {
	client := exchangeMock.NewClient(t)
	client.On("SubmitMarketOrder", mock.Anything, pair, domain.SideBuy, "0.0004", clientID("tbe")).
		Return(domain.PlacedOrder{}, domain.NewRejectedError("submit market order", errors.New("LOT_SIZE"))).Once()

	e, _, n := newTestExecutor(t, client)
	result := e.Execute(context.Background(), intent(t, "0.0004"), decimal.RequireFromString("0.05"))

	assert.True(t, errors.Is(result.Err(), domain.ErrOrderRejected))
	require.Len(t, n.alerts, 1)
	assert.Equal(t, alert.SeverityWarning, n.alerts[0].Severity)
}

func TestExecute_NoFillIsEntryFailure(t *testing.T) {
	client := exchangeMock.NewClient(t)
	client.On("SubmitMarketOrder", mock.Anything, pair, domain.SideBuy, "0.0004", clientID("tbe")).
		Return(filledOrder("0", "0"), nil).Once()

	e, _, _ := newTestExecutor(t, client)
	result := e.Execute(context.Background(), intent(t, "0.0004"), decimal.RequireFromString("0.05"))

	assert.Equal(t, StepFailed, result.Entry.Status)
	assert.Equal(t, StepNotAttempted, result.Stop.Status)
	assert.True(t, errors.Is(result.Err(), domain.ErrNoFill))
}

func TestExecute_StopFailsYieldsUnprotectedPosition(t *testing.T) {
	client := exchangeMock.NewClient(t)
	client.On("SubmitMarketOrder", mock.Anything, pair, domain.SideBuy, "0.0004", clientID("tbe")).
		Return(filledOrder("0.0004", "50000"), nil).Once()
	client.On("SubmitStopLossOrder", mock.Anything, pair, domain.SideSell, "0.0004", "47500.00", clientID("tbs")).
		Return(domain.PlacedOrder{}, domain.NewTransportError("submit stop order", errors.New("timeout"))).Once()

	e, l, n := newTestExecutor(t, client)
	result := e.Execute(context.Background(), intent(t, "0.0004"), decimal.RequireFromString("0.05"))

	assert.True(t, result.Unprotected())
	var uerr *domain.UnprotectedPositionError
	require.True(t, errors.As(result.Err(), &uerr))
	assert.Equal(t, result.EntryID, uerr.EntryID)
	assert.Equal(t, pair, uerr.Pair)
	assert.True(t, uerr.StopPrice.Equal(decimal.NewFromInt(47500)))

	require.Len(t, n.alerts, 1)
	assert.Equal(t, alert.SeverityCritical, n.alerts[0].Severity)
	assert.True(t, l.HasUnprotected())
	client.AssertNumberOfCalls(t, "SubmitStopLossOrder", 1)
}

func TestExecute_PartialFillUsesExecutedQuantityAndPrice(t *testing.T) {
	client := exchangeMock.NewClient(t)
	client.On("SubmitMarketOrder", mock.Anything, pair, domain.SideBuy, "0.0010", clientID("tbe")).
		Return(filledOrder("0.00037", "50010"), nil).Once()
	// 50010 * 0.95 = 47509.5; 0.00037 floors to 0.0003
	client.On("SubmitStopLossOrder", mock.Anything, pair, domain.SideSell, "0.0003", "47509.50", clientID("tbs")).
		Return(domain.PlacedOrder{ID: "stop-1"}, nil).Once()

	e, _, _ := newTestExecutor(t, client)
	result := e.Execute(context.Background(), intent(t, "0.0010"), decimal.RequireFromString("0.05"))
	require.NoError(t, result.Err())
}

func TestExecute_StopQuantityRoundsToZero(t *testing.T) {
	client := exchangeMock.NewClient(t)
	client.On("SubmitMarketOrder", mock.Anything, pair, domain.SideBuy, "0.0004", clientID("tbe")).
		Return(filledOrder("0.00005", "50000"), nil).Once()

	e, _, n := newTestExecutor(t, client)
	result := e.Execute(context.Background(), intent(t, "0.0004"), decimal.RequireFromString("0.05"))

	assert.True(t, result.Unprotected())
	assert.True(t, errors.Is(result.Stop.Err, ErrStopQuantityZero))
	assert.Len(t, n.alerts, 1)
}

func TestExecute_InvalidStopFraction(t *testing.T) {
	client := exchangeMock.NewClient(t)
	e, _, _ := newTestExecutor(t, client)

	for _, f := range []string{"0", "1", "-0.1"} {
		result := e.Execute(context.Background(), intent(t, "0.0004"), decimal.RequireFromString(f))
		assert.Equal(t, StepFailed, result.Entry.Status, f)
		assert.Empty(t, result.EntryID, f)
	}
}

func TestStopPrice_RoundsUpToTick(t *testing.T) {
	got := StopPrice(decimal.RequireFromString("50001.33"), decimal.RequireFromString("0.05"), lot(t))
	// 47501.2635 -> 47501.27
	assert.Equal(t, "47501.27", got.StringFixed(2))

	entry := decimal.RequireFromString("50001.33")
	loss := entry.Sub(got).Div(entry)
	assert.True(t, loss.LessThanOrEqual(decimal.RequireFromString("0.05")))
}

func TestReprotect(t *testing.T) {
	client := exchangeMock.NewClient(t)
	client.On("SubmitMarketOrder", mock.Anything, pair, domain.SideBuy, "0.0004", clientID("tbe")).
		Return(filledOrder("0.0004", "50000"), nil).Once()
	client.On("SubmitStopLossOrder", mock.Anything, pair, domain.SideSell, "0.0004", "47500.00", clientID("tbs")).
		Return(domain.PlacedOrder{}, domain.NewTransportError("submit stop order", errors.New("timeout"))).Once()

	e, l, _ := newTestExecutor(t, client)
	result := e.Execute(context.Background(), intent(t, "0.0004"), decimal.RequireFromString("0.05"))
	require.True(t, result.Unprotected())

	stopID := "tbs" + result.EntryID
	client.On("GetLotConstraint", mock.Anything, pair).Return(lot(t), nil).Once()
	client.On("SubmitStopLossOrder", mock.Anything, pair, domain.SideSell, "0.0004", "47500.00", stopID).
		Return(domain.PlacedOrder{ID: "stop-2"}, nil).Once()

	_, err := e.Reprotect(context.Background(), result.EntryID)
	require.NoError(t, err)
	assert.False(t, l.HasUnprotected())

	// protected entries are never stopped twice
	_, err = e.Reprotect(context.Background(), result.EntryID)
	assert.True(t, errors.Is(err, ledger.ErrInvalidTransition))
	client.AssertNumberOfCalls(t, "SubmitStopLossOrder", 2)
}

func TestExecute_TimedOutEntryFoundByLookupGetsStop(t *testing.T) {
	client := exchangeMock.NewClient(t)
	client.On("SubmitMarketOrder", mock.Anything, pair, domain.SideBuy, "0.0004", clientID("tbe")).
		Return(domain.PlacedOrder{}, domain.NewTransportError("submit market order", context.DeadlineExceeded)).Once()
	client.On("LookupOrder", mock.Anything, pair, clientID("tbe")).Return(domain.PlacedOrder{}, notFoundErr()).Once()
	client.On("LookupOrder", mock.Anything, pair, clientID("tbe")).Return(filledOrder("0.0004", "50000"), nil).Once()
	client.On("SubmitStopLossOrder", mock.Anything, pair, domain.SideSell, "0.0004", "47500.00", clientID("tbs")).
		Return(domain.PlacedOrder{ID: "stop-1"}, nil).Once()

	e, l, n := newTestExecutor(t, client)
	result := e.Execute(context.Background(), intent(t, "0.0004"), decimal.RequireFromString("0.05"))

	require.NoError(t, result.Err())
	assert.Equal(t, StepSucceeded, result.Entry.Status)
	assert.Equal(t, StepSucceeded, result.Stop.Status)
	assert.Empty(t, n.alerts)

	entry, err := l.Get(result.EntryID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusProtected, entry.Status)
}

func TestExecute_AcceptedEntryWithUnreadableFillHaltsEntries(t *testing.T) {
	client := exchangeMock.NewClient(t)
	accepted := errors.Wrap(domain.ErrFillUnknown, "order 1 not found in bybit history")
	client.On("SubmitMarketOrder", mock.Anything, pair, domain.SideBuy, "0.0004", clientID("tbe")).
		Return(domain.PlacedOrder{}, accepted).Once()
	client.On("LookupOrder", mock.Anything, pair, clientID("tbe")).Return(domain.PlacedOrder{}, notFoundErr()).Twice()

	e, l, n := newTestExecutor(t, client)
	result := e.Execute(context.Background(), intent(t, "0.0004"), decimal.RequireFromString("0.05"))

	assert.Equal(t, StepUnknown, result.Entry.Status)
	assert.Equal(t, StepNotAttempted, result.Stop.Status)
	assert.True(t, errors.Is(result.Err(), domain.ErrEntryUnknown))
	client.AssertNotCalled(t, "SubmitStopLossOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	require.Len(t, n.alerts, 1)
	assert.Equal(t, alert.SeverityCritical, n.alerts[0].Severity)
	assert.True(t, l.HasUnprotected())

	entry, err := l.Get(result.EntryID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusEntryUnknown, entry.Status)
	assert.True(t, entry.Acknowledged)
}

func TestExecute_LookupTransportFailureIsUnknown(t *testing.T) {
	client := exchangeMock.NewClient(t)
	timeout := domain.NewTransportError("submit market order", context.DeadlineExceeded)
	client.On("SubmitMarketOrder", mock.Anything, pair, domain.SideBuy, "0.0004", clientID("tbe")).
		Return(domain.PlacedOrder{}, timeout).Once()
	client.On("LookupOrder", mock.Anything, pair, clientID("tbe")).
		Return(domain.PlacedOrder{}, domain.NewTransportError("get order", errors.New("connection reset"))).Twice()

	e, l, _ := newTestExecutor(t, client)
	result := e.Execute(context.Background(), intent(t, "0.0004"), decimal.RequireFromString("0.05"))

	assert.Equal(t, StepUnknown, result.Entry.Status)
	entry, err := l.Get(result.EntryID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusEntryUnknown, entry.Status)
	assert.False(t, entry.Acknowledged)
}

func TestExecute_ReconciledZeroFillIsEntryFailure(t *testing.T) {
	client := exchangeMock.NewClient(t)
	client.On("SubmitMarketOrder", mock.Anything, pair, domain.SideBuy, "0.0004", clientID("tbe")).
		Return(domain.PlacedOrder{}, errors.Wrap(domain.ErrFillUnknown, "readback")).Once()
	client.On("LookupOrder", mock.Anything, pair, clientID("tbe")).Return(filledOrder("0", "0"), nil).Once()

	e, l, _ := newTestExecutor(t, client)
	result := e.Execute(context.Background(), intent(t, "0.0004"), decimal.RequireFromString("0.05"))

	assert.Equal(t, StepFailed, result.Entry.Status)
	assert.True(t, errors.Is(result.Err(), domain.ErrNoFill))
	assert.False(t, l.HasUnprotected())
}

// parkUnknown drives one entry into entry_unknown.
func parkUnknown(t *testing.T, client *exchangeMock.Client, e *Executor, submitErr error) string {
	t.Helper()
	client.On("SubmitMarketOrder", mock.Anything, pair, domain.SideBuy, "0.0004", clientID("tbe")).
		Return(domain.PlacedOrder{}, submitErr).Once()
	client.On("LookupOrder", mock.Anything, pair, clientID("tbe")).
		Return(domain.PlacedOrder{}, domain.NewTransportError("lookup", errors.New("reset"))).Twice()
	result := e.Execute(context.Background(), intent(t, "0.0004"), decimal.RequireFromString("0.05"))
	require.Equal(t, StepUnknown, result.Entry.Status)
	return result.EntryID
}

func TestResolveUnknown(t *testing.T) {
	fraction := decimal.RequireFromString("0.05")

	t.Run("found fill gets its stop", func(t *testing.T) {
		client := exchangeMock.NewClient(t)
		e, l, _ := newTestExecutor(t, client)
		id := parkUnknown(t, client, e, errors.Wrap(domain.ErrFillUnknown, "readback"))

		client.On("LookupOrder", mock.Anything, pair, clientID("tbe")).Return(filledOrder("0.0004", "50000"), nil).Once()
		client.On("GetLotConstraint", mock.Anything, pair).Return(lot(t), nil).Once()
		client.On("SubmitStopLossOrder", mock.Anything, pair, domain.SideSell, "0.0004", "47500.00", clientID("tbs")).
			Return(domain.PlacedOrder{ID: "stop-1"}, nil).Once()

		results := e.ResolveUnknown(context.Background(), fraction)
		require.Len(t, results, 1)
		require.NoError(t, results[0].Err())

		entry, err := l.Get(id)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusProtected, entry.Status)
		assert.False(t, l.HasUnprotected())
	})

	t.Run("unacknowledged order missing on exchange fails", func(t *testing.T) {
		client := exchangeMock.NewClient(t)
		e, l, _ := newTestExecutor(t, client)
		id := parkUnknown(t, client, e, domain.NewTransportError("submit market order", context.DeadlineExceeded))

		client.On("LookupOrder", mock.Anything, pair, clientID("tbe")).Return(domain.PlacedOrder{}, notFoundErr()).Once()

		results := e.ResolveUnknown(context.Background(), fraction)
		require.Len(t, results, 1)
		assert.Equal(t, StepFailed, results[0].Entry.Status)

		entry, err := l.Get(id)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusEntryFailed, entry.Status)
	})

	t.Run("acknowledged order missing stays parked", func(t *testing.T) {
		client := exchangeMock.NewClient(t)
		e, l, _ := newTestExecutor(t, client)
		id := parkUnknown(t, client, e, errors.Wrap(domain.ErrFillUnknown, "readback"))

		client.On("LookupOrder", mock.Anything, pair, clientID("tbe")).Return(domain.PlacedOrder{}, notFoundErr()).Once()

		assert.Empty(t, e.ResolveUnknown(context.Background(), fraction))
		entry, err := l.Get(id)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusEntryUnknown, entry.Status)
		assert.True(t, l.HasUnprotected())
	})

	t.Run("nothing parked makes no calls", func(t *testing.T) {
		client := exchangeMock.NewClient(t)
		e, _, _ := newTestExecutor(t, client)
		assert.Empty(t, e.ResolveUnknown(context.Background(), fraction))
	})
}
