package mqtt

import (
	"testing"
)

func TestCollector_Announce(t *testing.T) {
	c := newCollector()
	c.observe("shellyplus1-a8032abe54dc/announce",
		[]byte(`{"id":"shellyplus1-a8032abe54dc","mac":"A8032ABE54DC","ip":"192.168.1.120","model":"SNSW-001X16EU"}`))

	got := c.snapshot()
	if len(got) != 1 {
		t.Fatalf("devices = %d, want 1", len(got))
	}
	d := got[0]
	if d.IP != "192.168.1.120" || d.Model != "SNSW-001X16EU" || d.MAC != "A8032ABE54DC" {
		t.Errorf("device mismatch: %+v", d)
	}
}

func TestCollector_OnlineOnly(t *testing.T) {
	c := newCollector()
	c.observe("shellyplus1-a8032abe54dc/online", []byte("true"))
	c.observe("shellyplus2pm-b8032abe54ff/online", []byte("false"))

	got := c.snapshot()
	if len(got) != 1 {
		t.Fatalf("devices = %d, want 1 (offline ignored)", len(got))
	}
	if got[0].ID != "shellyplus1-a8032abe54dc" || got[0].IP != "" {
		t.Errorf("device mismatch: %+v", got[0])
	}
}

func TestCollector_MergesOnlineWithAnnounce(t *testing.T) {
	c := newCollector()
	c.observe("shellyplus1-a8032abe54dc/online", []byte("true"))
	c.observe("shellyplus1-a8032abe54dc/announce",
		[]byte(`{"id":"shellyplus1-a8032abe54dc","mac":"A8:03:2A:BE:54:DC","ip":"192.168.1.120"}`))

	got := c.snapshot()
	if len(got) != 1 {
		t.Fatalf("devices = %d, want 1 after merge", len(got))
	}
	if got[0].IP != "192.168.1.120" {
		t.Errorf("merge lost the ip: %+v", got[0])
	}
}

func TestCollector_AssignedNameWinsOverFactoryID(t *testing.T) {
	c := newCollector()
	c.observe("shellyplus1-a8032abe54dc/announce",
		[]byte(`{"id":"shellyplus1-a8032abe54dc","mac":"A8032ABE54DC","model":"SNSW-001X16EU"}`))
	c.observe("RCC-Device-001/announce",
		[]byte(`{"id":"RCC-Device-001","mac":"A8032ABE54DC","ip":"192.168.1.120"}`))

	got := c.snapshot()
	if len(got) != 1 {
		t.Fatalf("devices = %d, want 1 (same hardware)", len(got))
	}
	d := got[0]
	if d.ID != "RCC-Device-001" {
		t.Errorf("id = %q, want the assigned name", d.ID)
	}
	if d.Model != "SNSW-001X16EU" || d.IP != "192.168.1.120" {
		t.Errorf("merge dropped fields: %+v", d)
	}
}

func TestCollector_EventsRPC(t *testing.T) {
	c := newCollector()
	c.observe("RCC-Device-003/events/rpc", []byte(`{"src":"RCC-Device-003","method":"NotifyStatus"}`))

	got := c.snapshot()
	if len(got) != 1 || got[0].ID != "RCC-Device-003" {
		t.Fatalf("devices = %+v, want RCC-Device-003", got)
	}
}

func TestCollector_IgnoresNoise(t *testing.T) {
	c := newCollector()
	c.observe("shellies/command", []byte("announce"))
	c.observe("whatever/announce", []byte("not json"))
	c.observe("a/b/c/d", []byte("{}"))

	if got := c.snapshot(); len(got) != 0 {
		t.Errorf("devices = %+v, want none", got)
	}
}

func TestCollector_SnapshotSorted(t *testing.T) {
	c := newCollector()
	c.observe("b-device/online", []byte("true"))
	c.observe("a-device/online", []byte("true"))

	got := c.snapshot()
	if len(got) != 2 || got[0].ID != "a-device" || got[1].ID != "b-device" {
		t.Errorf("snapshot not sorted by id: %+v", got)
	}
}
