package peer

import "testing"

func TestCleanAddressIdempotent(t *testing.T) {
	cases := []string{
		"::ffff:10.0.0.1",
		"example.com",
		"192.168.1.5",
		"8.8.8.8",
		"127.0.0.1",
	}
	for _, c := range cases {
		once := cleanAddress(c)
		twice := cleanAddress(once)
		if once != twice {
			t.Errorf("cleanAddress not idempotent for %q: %q != %q", c, once, twice)
		}
	}
}

func TestCleanAddressMappedPrivate(t *testing.T) {
	got := cleanAddress("::ffff:10.0.0.1")
	if got != "localhost" {
		t.Errorf("expected localhost, got %q", got)
	}
}

func TestCleanAddressHostnamePassthrough(t *testing.T) {
	got := cleanAddress("example.com")
	if got != "example.com" {
		t.Errorf("expected unchanged hostname, got %q", got)
	}
}

func TestParseDefaultURI(t *testing.T) {
	u, err := parseDefaultURI("node-a.example/18600/15600/14600")
	if err != nil {
		t.Fatal(err)
	}
	if u.Hostname != "node-a.example" || u.Port != "18600" || u.TCPPort != "15600" || u.UDPPort != "14600" {
		t.Errorf("unexpected parse result: %+v", u)
	}
}

func TestParseDefaultURIDefaultsPorts(t *testing.T) {
	u, err := parseDefaultURI("node-a.example/18600")
	if err != nil {
		t.Fatal(err)
	}
	if u.TCPPort != DefaultTCPPort || u.UDPPort != DefaultUDPPort {
		t.Errorf("expected default ports, got %+v", u)
	}
}
