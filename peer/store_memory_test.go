package peer

import "testing"

func TestMemoryStorePutAndAll(t *testing.T) {
	s := OpenMemoryStore()
	defer s.Close()

	d := &document{Hostname: "example.com", Weight: 1}
	if err := s.Put(d); err != nil {
		t.Fatal(err)
	}
	if d.ID == "" {
		t.Fatal("expected an ID to be assigned")
	}

	all, err := s.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 document, got %d", len(all))
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	s := OpenMemoryStore()
	defer s.Close()

	d := &document{Hostname: "example.com"}
	if err := s.Put(d); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(d.ID); err != nil {
		t.Fatal(err)
	}
	all, err := s.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Fatalf("expected 0 documents after delete, got %d", len(all))
	}
}

func TestMemoryStoreClear(t *testing.T) {
	s := OpenMemoryStore()
	defer s.Close()

	for i := 0; i < 3; i++ {
		if err := s.Put(&document{Hostname: "x"}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	all, err := s.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Fatalf("expected empty store after clear, got %d", len(all))
	}
}
