package peer

import "testing"

func TestLoadSeedsDefaults(t *testing.T) {
	l := NewPeerList(OpenMemoryStore(), false, false)
	if err := l.Load([]string{"node-a.example/18600/15600/14600"}); err != nil {
		t.Fatal(err)
	}

	all := l.All()
	if len(all) != 1 {
		t.Fatalf("expected 1 peer after load, got %d", len(all))
	}
	p := all[0]
	if p.Hostname != "node-a.example" || !p.IsTrusted() || p.Weight != 1.0 {
		t.Errorf("unexpected seeded peer: %+v", p)
	}
}

func TestAddRaisesWeightOnly(t *testing.T) {
	l := NewPeerList(OpenMemoryStore(), false, false)

	if _, err := l.Add("node-a.example", "18600", "15600", "14600", false, 0.3); err != nil {
		t.Fatal(err)
	}
	p, err := l.Add("node-a.example", "18600", "15600", "14600", false, 0.7)
	if err != nil {
		t.Fatal(err)
	}
	if p.Weight != 0.7 {
		t.Fatalf("expected weight raised to 0.7, got %f", p.Weight)
	}

	p2, err := l.Add("node-a.example", "18600", "15600", "14600", false, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if p2.Weight != 0.7 {
		t.Fatalf("expected weight to stay at 0.7 when new weight is lower, got %f", p2.Weight)
	}

	if len(l.All()) != 1 {
		t.Fatalf("expected a single deduplicated peer, got %d", len(l.All()))
	}
}

func TestAddUpdatesPortsWithoutMultiPort(t *testing.T) {
	l := NewPeerList(OpenMemoryStore(), false, false)
	if _, err := l.Add("node-a.example", "18600", "15600", "14600", false, 1); err != nil {
		t.Fatal(err)
	}
	p, err := l.Add("node-a.example", "18601", "15601", "14601", false, 1)
	if err != nil {
		t.Fatal(err)
	}
	if p.Port != "18601" || p.TCPPort != "15601" || p.UDPPort != "14601" {
		t.Errorf("expected ports to be updated, got %+v", p)
	}
}

func TestFindByAddressAfterAdd(t *testing.T) {
	l := NewPeerList(OpenMemoryStore(), false, false)
	if _, err := l.Add("node-a.example", "18600", "15600", "14600", true, 1); err != nil {
		t.Fatal(err)
	}
	matches := l.findByAddress("node-a.example", "18600")
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
}

func TestIsTrusted(t *testing.T) {
	l := NewPeerList(OpenMemoryStore(), false, false)
	if _, err := l.Add("node-a.example", "18600", "15600", "14600", true, 1); err != nil {
		t.Fatal(err)
	}
	if !l.IsTrusted("node-a.example/18600") {
		t.Error("expected node-a.example to be trusted")
	}
	if l.IsTrusted("node-b.example/18600") {
		t.Error("expected node-b.example to not be trusted")
	}
}

func TestMarkConnectedResetsTried(t *testing.T) {
	l := NewPeerList(OpenMemoryStore(), false, false)
	p, err := l.Add("node-a.example", "18600", "15600", "14600", false, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.MarkTried(p); err != nil {
		t.Fatal(err)
	}
	if p.Tried != 1 {
		t.Fatalf("expected tried=1, got %d", p.Tried)
	}
	if err := l.MarkConnected(p, 1.0); err != nil {
		t.Fatal(err)
	}
	if p.Tried != 0 || p.Connected != 1 || p.DateLastConnected == nil {
		t.Errorf("unexpected peer state after markConnected: %+v", p)
	}
}

func TestClearWipesEverything(t *testing.T) {
	l := NewPeerList(OpenMemoryStore(), false, false)
	if _, err := l.Add("node-a.example", "18600", "15600", "14600", false, 1); err != nil {
		t.Fatal(err)
	}
	if err := l.Clear(); err != nil {
		t.Fatal(err)
	}
	if len(l.All()) != 0 {
		t.Fatalf("expected no peers after clear, got %d", len(l.All()))
	}
}

func TestGetWeightedAmountZeroReturnsAll(t *testing.T) {
	l := NewPeerList(OpenMemoryStore(), false, false)
	for i := 0; i < 3; i++ {
		host := string([]byte{'a' + byte(i)}) + ".example"
		if _, err := l.Add(host, "18600", "15600", "14600", false, 1); err != nil {
			t.Fatal(err)
		}
	}
	got := l.GetWeighted(0, nil)
	if len(got) != 3 {
		t.Fatalf("expected 3 results for amount=0, got %d", len(got))
	}
}
