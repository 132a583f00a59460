package iri

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/lra/nelson.cli/internal/fakeiri"
)

func dial(t *testing.T, l *fakeiri.Ledger) *Client {
	host, port, err := net.SplitHostPort(l.URL())
	if err != nil {
		t.Fatal(err)
	}
	return New(host, port, nil)
}

func TestStartRecordsStaticNeighbors(t *testing.T) {
	fake := fakeiri.New("10.0.0.1:15600")
	defer fake.Close()

	c := dial(t, fake)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer c.End()

	if !c.IsHealthy() {
		t.Error("expected client to be healthy after Start")
	}
	if !c.IsStaticNeighbor("10.0.0.1") {
		t.Error("expected 10.0.0.1 to be recorded as static")
	}
}

func TestRemoveNeighborsFiltersStatic(t *testing.T) {
	fake := fakeiri.New("10.0.0.1:15600")
	defer fake.Close()

	c := dial(t, fake)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer c.End()

	if _, err := c.AddNeighbors(ctx, []string{"udp://10.0.0.2:14600"}); err != nil {
		t.Fatal(err)
	}

	removed, err := c.RemoveNeighbors(ctx, []string{"udp://10.0.0.1:14600", "udp://10.0.0.2:14600"})
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("expected only the non-static neighbor to be removed, got %d", removed)
	}
}

func TestRemoveAllNeighborsPreservesStatic(t *testing.T) {
	fake := fakeiri.New("static-x:15600")
	defer fake.Close()

	c := dial(t, fake)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer c.End()

	if _, err := c.AddNeighbors(ctx, []string{"udp://dyn-y:14600"}); err != nil {
		t.Fatal(err)
	}

	if err := c.RemoveAllNeighbors(ctx); err != nil {
		t.Fatal(err)
	}

	neighbors, err := c.getNeighbors(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(neighbors) != 1 || neighbors[0].Address != "static-x:15600" {
		t.Errorf("expected only the static neighbor to remain, got %+v", neighbors)
	}
}

func TestStartupPolling(t *testing.T) {
	fake := fakeiri.New()
	defer fake.Close()

	fake.FailNext = true
	c := dial(t, fake)

	ctx, cancel := context.WithTimeout(context.Background(), 7*time.Second)
	defer cancel()

	start := time.Now()
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer c.End()

	if time.Since(start) < startupPollInterval {
		t.Error("expected Start to wait at least one poll interval after the first failure")
	}
}
