package cli

import (
	"bytes"
	"strings"
	"testing"

	"offline-cart-sync/internal/domain"

	json "github.com/goccy/go-json"
	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEngineURL = "http://engine.test"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append(args, "--engine-url", testEngineURL))
	err := cmd.Execute()
	return buf.String(), err
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{"success": true, "data": data}
}

func TestQueueList(t *testing.T) {
	defer gock.Off()

	gock.New(testEngineURL).
		Get("/api/v1/offline-cart").
		Reply(200).
		JSON(envelope(domain.OfflineCartResponse{
			Items: []domain.OfflineLineItem{{SKU: "VA12", Quantity: 2, Name: "Bangle"}},
			Count: 2,
		}))

	out, err := execute(t, "queue", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "VA12")
	assert.Contains(t, out, "Bangle")
	assert.Contains(t, out, "2 item(s) queued")
	assert.True(t, gock.IsDone())
}

func TestQueueListJSON(t *testing.T) {
	defer gock.Off()

	gock.New(testEngineURL).
		Get("/api/v1/offline-cart").
		Reply(200).
		JSON(envelope(domain.OfflineCartResponse{Items: []domain.OfflineLineItem{}, Count: 0}))

	out, err := execute(t, "queue", "list", "--format", "json")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestQueueAdd_SendsPriceOnlyWhenSet(t *testing.T) {
	defer gock.Off()

	gock.New(testEngineURL).
		Post("/api/v1/cart/items").
		MatchType("json").
		JSON(map[string]interface{}{
			"sku": "VA12", "quantity": 3, "name": "Bangle", "price": 19.5,
			"currency": "USD", "thumbnail_url": "",
		}).
		Reply(202).
		JSON(envelope(domain.AddToCartResponse{
			Outcome: domain.OutcomeQueued,
			Item:    domain.OfflineLineItem{SKU: "VA12", Quantity: 3},
		}))

	out, err := execute(t, "queue", "add", "VA12", "--qty", "3", "--name", "Bangle", "--price", "19.5", "--currency", "USD")
	require.NoError(t, err)
	assert.Contains(t, out, "Queued 3 x VA12 offline")
	assert.True(t, gock.IsDone())
}

func TestQueueAdd_RejectsZeroQuantity(t *testing.T) {
	_, err := execute(t, "queue", "add", "VA12", "--qty", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestQueueRemoveAndClear(t *testing.T) {
	defer gock.Off()

	gock.New(testEngineURL).
		Delete("/api/v1/offline-cart/VA12").
		Reply(200).
		JSON(envelope(domain.OfflineCartResponse{Items: []domain.OfflineLineItem{}, Count: 0}))
	gock.New(testEngineURL).
		Delete("/api/v1/offline-cart").
		Reply(204)

	out, err := execute(t, "queue", "remove", "VA12")
	require.NoError(t, err)
	assert.Contains(t, out, "Offline cart is empty")

	out, err = execute(t, "queue", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Offline cart cleared")
	assert.True(t, gock.IsDone())
}

func TestSync_Wait(t *testing.T) {
	defer gock.Off()

	gock.New(testEngineURL).
		Post("/api/v1/sync").
		MatchParam("wait", "true").
		JSON(map[string]string{"cart_id": "cart-9"}).
		Reply(200).
		JSON(envelope(domain.PassResult{
			CartID: "cart-9",
			Items: []domain.ItemResult{
				{SKU: "A", Quantity: 1, Resolution: domain.ResolutionAdded},
				{SKU: "B", Quantity: 1, Resolution: domain.ResolutionOutOfStock},
			},
		}))

	out, err := execute(t, "sync", "--wait", "--cart-id", "cart-9")
	require.NoError(t, err)
	assert.Contains(t, out, "cart-9")
	assert.Contains(t, out, "Added:     1")
	assert.Contains(t, out, "Dropped:   1")
}

func TestSync_OfflineIsFailure(t *testing.T) {
	defer gock.Off()

	gock.New(testEngineURL).
		Post("/api/v1/sync").
		Reply(503).
		JSON(map[string]interface{}{"success": false, "error": "remote cart backend is offline"})

	out, err := execute(t, "sync")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "HTTP503")
	assert.Contains(t, out, "offline")
}

func TestUnreachableEngine(t *testing.T) {
	defer gock.Off()
	gock.New(testEngineURL).Get("/never-called").Reply(200)

	_, err := execute(t, "status")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestStatus(t *testing.T) {
	defer gock.Off()

	gock.New(testEngineURL).
		Get("/api/v1/sync/status").
		Reply(200).
		JSON(envelope(domain.SyncStatus{State: domain.SyncStateOffline}))
	gock.New(testEngineURL).
		Get("/api/v1/connectivity").
		Reply(200).
		JSON(envelope(domain.ConnectivityStatus{Online: false, Mode: domain.ModeForcedOffline}))
	gock.New(testEngineURL).
		Get("/api/v1/cart").
		Reply(200).
		JSON(envelope(domain.CartView{
			Offline: []domain.OfflineLineItem{{SKU: "A", Quantity: 2}},
			Count:   2,
		}))

	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Backend:   offline (mode offline)")
	assert.Contains(t, out, "Sync:      offline")
	assert.Contains(t, out, "Items:     2")
}

func TestConnectivity_Set(t *testing.T) {
	defer gock.Off()

	gock.New(testEngineURL).
		Put("/api/v1/connectivity").
		JSON(map[string]string{"mode": "online"}).
		Reply(200).
		JSON(envelope(domain.ConnectivityStatus{Online: true, Mode: domain.ModeForcedOnline}))

	out, err := execute(t, "connectivity", "online")
	require.NoError(t, err)
	assert.Contains(t, out, "Backend is online (mode online)")

	_, err = execute(t, "connectivity", "sideways")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestHashSecret(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetIn(strings.NewReader("engine-secret-0001\n"))
	cmd.SetArgs([]string{"hash-secret"})

	require.NoError(t, cmd.Execute())
	assert.True(t, strings.HasPrefix(buf.String(), "$2a$"))

	cmd = NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader("short\n"))
	cmd.SetArgs([]string{"hash-secret"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
