package xui

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/tphan267/xui-hub/pkg/models"
)

// Result is the outcome of one panel call within a batch
type Result struct {
	ServerID   string          `json:"serverId"`
	ServerName string          `json:"serverName"`
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data,omitempty"`
	Msg        string          `json:"msg,omitempty"`
}

// Call is a single-server panel operation
type Call func(ctx context.Context, server *models.Server) (json.RawMessage, error)

// RunAcrossAll runs call against every server concurrently and waits for all
// of them. It returns exactly one result per server, in input order. A failing
// or panicking call only affects its own result. limit > 0 bounds parallelism.
func RunAcrossAll(ctx context.Context, servers []*models.Server, limit int, call Call) []Result {
	results := make([]Result, len(servers))

	// A plain Group never cancels siblings; failures live in the results.
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, server := range servers {
		g.Go(func() error {
			results[i] = runOne(ctx, server, call)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func runOne(ctx context.Context, server *models.Server, call Call) (res Result) {
	res = Result{ServerID: server.ID, ServerName: server.Name}

	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Data = nil
			res.Msg = fmt.Sprintf("panic: %v", r)
		}
	}()

	data, err := call(ctx, server)
	if err != nil {
		res.Msg = err.Error()
		return res
	}

	res.Success = true
	res.Data = data
	return res
}

// Failed counts unsuccessful results
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Success {
			n++
		}
	}
	return n
}
