package xui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphan267/xui-hub/pkg/models"
	"github.com/tphan267/xui-hub/pkg/xui/xuitest"
)

func makeServers(n int) []*models.Server {
	servers := make([]*models.Server, n)
	for i := range servers {
		servers[i] = &models.Server{ID: fmt.Sprintf("id-%d", i), Name: fmt.Sprintf("S%d", i)}
	}
	return servers
}

func TestRunAcrossAll_OneResultPerServer(t *testing.T) {
	for _, n := range []int{0, 1, 5, 40} {
		for failing := 0; failing <= n; failing += max(1, n/3) {
			servers := makeServers(n)
			call := func(ctx context.Context, s *models.Server) (json.RawMessage, error) {
				var idx int
				fmt.Sscanf(s.ID, "id-%d", &idx)
				if idx < failing {
					return nil, errors.New("boom")
				}
				return json.RawMessage(`{"ok":true}`), nil
			}

			results := RunAcrossAll(context.Background(), servers, 0, call)
			require.Len(t, results, n)
			assert.Equal(t, failing, Failed(results), "n=%d", n)

			for i, r := range results {
				assert.Equal(t, servers[i].ID, r.ServerID)
				assert.Equal(t, servers[i].Name, r.ServerName)
				if i < failing {
					assert.False(t, r.Success)
					assert.Equal(t, "boom", r.Msg)
					assert.Nil(t, r.Data)
				} else {
					assert.True(t, r.Success)
					assert.JSONEq(t, `{"ok":true}`, string(r.Data))
				}
			}
			if n == 0 {
				break
			}
		}
	}
}

func TestRunAcrossAll_RecoversPanics(t *testing.T) {
	servers := makeServers(3)
	call := func(ctx context.Context, s *models.Server) (json.RawMessage, error) {
		if s.ID == "id-1" {
			panic("bad panel")
		}
		return json.RawMessage(`1`), nil
	}

	results := RunAcrossAll(context.Background(), servers, 0, call)
	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Msg, "bad panel")
	assert.True(t, results[2].Success)
}

func TestRunAcrossAll_Concurrency(t *testing.T) {
	servers := makeServers(8)

	var inFlight, peak atomic.Int32
	call := func(ctx context.Context, s *models.Server) (json.RawMessage, error) {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return json.RawMessage(`null`), nil
	}

	RunAcrossAll(context.Background(), servers, 2, call)
	assert.LessOrEqual(t, peak.Load(), int32(2))

	peak.Store(0)
	RunAcrossAll(context.Background(), servers, 0, call)
	assert.Greater(t, peak.Load(), int32(2))
}

func TestRunAcrossAll_LoginFailureIsolation(t *testing.T) {
	good1 := xuitest.NewPanel(t)
	bad := xuitest.NewPanel(t)
	bad.RejectLogins()
	good2 := xuitest.NewPanel(t)

	servers := []*models.Server{
		good1.Record("g1", "good-1"),
		bad.Record("b", "bad"),
		good2.Record("g2", "good-2"),
	}

	client := NewClient(Options{Timeout: time.Second})
	results := RunAcrossAll(context.Background(), servers, 0, client.ListInbounds)

	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.True(t, results[2].Success)
	assert.Equal(t, results[0].Data, results[2].Data)
	assert.Empty(t, bad.Calls())
}

func TestRunAcrossAll_TimeoutIsolation(t *testing.T) {
	slow := xuitest.NewPanel(t)
	slow.Hang()
	fast := xuitest.NewPanel(t)

	servers := []*models.Server{slow.Record("slow", "slow"), fast.Record("fast", "fast")}

	client := NewClient(Options{Timeout: 300 * time.Millisecond})
	results := RunAcrossAll(context.Background(), servers, 0, client.Status)

	require.Len(t, results, 2)
	assert.Equal(t, "slow", results[0].ServerID)
	assert.False(t, results[0].Success)
	assert.NotEmpty(t, results[0].Msg)
	assert.Equal(t, "fast", results[1].ServerID)
	assert.True(t, results[1].Success)
}
