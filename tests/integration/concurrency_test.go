package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"nsimbi-wallet/internal/core/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// post is safe to call from worker goroutines: it reports failures instead
// of stopping the test.
func (a *testApp) post(path, token string, body interface{}, headers ...string) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequest(http.MethodPost, a.server.URL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// TestConcurrentCharges fires more charges than the student can afford and
// checks that exactly the affordable ones commit.
func TestConcurrentCharges(t *testing.T) {
	app := newTestApp(t)
	c := newCampus(t, app)
	app.fundStudent(t, c, "100.00")

	const workers = 30
	var (
		wg       sync.WaitGroup
		ok       atomic.Int64
		declined atomic.Int64
		failures atomic.Int64
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, err := app.post("/api/wallet/charge", c.merchantToken, map[string]interface{}{
				"studentNfcCardId": "CARD-001", "amount": "5.00", "cardPin": "1234",
			})
			switch {
			case err != nil:
				failures.Add(1)
			case status == http.StatusCreated:
				ok.Add(1)
			case status == http.StatusBadRequest:
				declined.Add(1)
			default:
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, failures.Load())
	assert.Equal(t, int64(20), ok.Load())
	assert.Equal(t, int64(10), declined.Load())

	assert.True(t, app.balance(t, c.studentID).IsZero())
	assert.True(t, app.balance(t, c.merchantID).Equal(decimal.NewFromInt(100)))
	assert.Len(t, app.entriesOfType(domain.EntryTypePayment), 20)
}

// TestConcurrentTransfersAndCharges runs parent transfers and merchant
// charges against the same student wallet at once.
func TestConcurrentTransfersAndCharges(t *testing.T) {
	app := newTestApp(t)
	c := newCampus(t, app)
	require.Equal(t, http.StatusCreated, app.topUp(t, c.parentToken, "200.00").Status)

	const rounds = 20
	var (
		wg        sync.WaitGroup
		transfers atomic.Int64
		charges   atomic.Int64
		failures  atomic.Int64
	)
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			status, err := app.post("/api/wallet/transfer", c.parentToken, map[string]interface{}{
				"studentId": c.studentID.String(), "amount": "10.00",
			})
			if err != nil || status != http.StatusCreated {
				failures.Add(1)
				return
			}
			transfers.Add(1)
		}()
		go func() {
			defer wg.Done()
			status, err := app.post("/api/wallet/charge", c.merchantToken, map[string]interface{}{
				"studentNfcCardId": "CARD-001", "amount": "10.00", "cardPin": "1234",
			})
			switch {
			case err != nil:
				failures.Add(1)
			case status == http.StatusCreated:
				charges.Add(1)
			case status != http.StatusBadRequest:
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, failures.Load())
	assert.Equal(t, int64(rounds), transfers.Load())

	parent := app.balance(t, c.parentID)
	student := app.balance(t, c.studentID)
	merchant := app.balance(t, c.merchantID)

	assert.True(t, parent.IsZero())
	assert.False(t, student.IsNegative())
	assert.True(t, merchant.Equal(decimal.NewFromInt(10*charges.Load())), merchant.String())
	assert.True(t, parent.Add(student).Add(merchant).Equal(decimal.NewFromInt(200)))
	assert.Len(t, app.entriesOfType(domain.EntryTypePayment), int(charges.Load()))
}

// TestConcurrentStockContention charges a scarce item from many terminals.
func TestConcurrentStockContention(t *testing.T) {
	app := newTestApp(t)
	c := newCampus(t, app)
	app.fundStudent(t, c, "500.00")
	juice := app.addItem(t, c.merchantToken, "Juice", "20.00", 5)

	const workers = 12
	var (
		wg   sync.WaitGroup
		sold atomic.Int64
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, err := app.post("/api/wallet/charge", c.merchantToken, map[string]interface{}{
				"studentNfcCardId": "CARD-001", "amount": "20.00", "cardPin": "1234",
				"items": []map[string]interface{}{{"inventoryId": juice.String(), "name": "Juice", "price": "20.00"}},
			})
			if err == nil && status == http.StatusCreated {
				sold.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5), sold.Load())
	assert.Equal(t, 0, app.stock(t, juice, c.merchantID))
	assert.True(t, app.balance(t, c.studentID).Equal(decimal.NewFromInt(400)))
}

// TestConcurrentIdempotentTransfers retries one transfer from many
// goroutines with the same key. Money moves once.
func TestConcurrentIdempotentTransfers(t *testing.T) {
	app := newTestApp(t)
	c := newCampus(t, app)
	require.Equal(t, http.StatusCreated, app.topUp(t, c.parentToken, "100.00").Status)

	const workers = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		statuses = map[int]int{}
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, err := app.post("/api/wallet/transfer", c.parentToken, map[string]interface{}{
				"studentId": c.studentID.String(), "amount": "25.00",
			}, "Idempotency-Key", "retry-me")
			if err != nil {
				status = -1
			}
			mu.Lock()
			statuses[status]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, statuses[http.StatusCreated])
	assert.Equal(t, workers, statuses[http.StatusCreated]+statuses[http.StatusOK]+statuses[http.StatusConflict],
		fmt.Sprintf("unexpected statuses: %v", statuses))

	assert.Len(t, app.entriesOfType(domain.EntryTypeTransfer), 1)
	assert.True(t, app.balance(t, c.parentID).Equal(decimal.NewFromInt(75)))
	assert.True(t, app.balance(t, c.studentID).Equal(decimal.NewFromInt(25)))
}
