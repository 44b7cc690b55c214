package memory

import "testing"

func TestReadWriteRoundTrip(t *testing.T) {
	m := New(DefaultMaxAddr)

	cases := []struct {
		width Width
		value uint64
	}{
		{W8, 0xAB},
		{W16, 0xBEEF},
		{W32, 0xDEADBEEF},
		{W64, 0x0123456789ABCDEF},
	}

	for _, c := range cases {
		addr := uint64(0x1000)
		if err := m.Write(addr, c.value, c.width); err != nil {
			t.Fatalf("width %d: write error: %v", c.width, err)
		}
		got, err := m.Read(addr, c.width)
		if err != nil {
			t.Fatalf("width %d: read error: %v", c.width, err)
		}
		want := c.value & widthMask(c.width)
		if got != want {
			t.Errorf("width %d: got %#x want %#x", c.width, got, want)
		}
	}
}

func TestUnalignedCrossesPageBoundary(t *testing.T) {
	m := New(DefaultMaxAddr)

	addr := uint64(PageSize - 2)
	if err := m.Write(addr, 0x1122, W16); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := m.Read(addr, W16)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != 0x1122 {
		t.Errorf("got %#x want 0x1122", got)
	}
}

func TestSparseAllocationDefaultsToZero(t *testing.T) {
	m := New(DefaultMaxAddr)
	got, err := m.Read(0x2000, W32)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != 0 {
		t.Errorf("untouched page should read zero, got %#x", got)
	}
}

type stubObserver struct {
	base, limit uint64
	lastWrite   uint64
	writeCount  int
}

func (o *stubObserver) Covers(addr uint64) bool { return addr >= o.base && addr <= o.limit }

func (o *stubObserver) Read(addr uint64, width Width) (uint64, bool) {
	return 0x99, true
}

func (o *stubObserver) Write(addr uint64, value uint64, width Width) bool {
	o.lastWrite = value
	o.writeCount++
	return true
}

func TestObserverShortCircuitsBackingStore(t *testing.T) {
	m := New(DefaultMaxAddr)
	obs := &stubObserver{base: 0xB8000, limit: 0xBFFFF}
	m.RegisterObserver(obs)

	if err := m.Write(0xB8000, 0x41, W8); err != nil {
		t.Fatalf("write: %v", err)
	}
	if obs.writeCount != 1 || obs.lastWrite != 0x41 {
		t.Errorf("observer not invoked correctly: %+v", obs)
	}

	// The observer handled the write, so the byte must not also land in
	// backing store.
	if page := m.page(0xB8000, false); page != nil && page[0] != 0 {
		t.Errorf("observer-handled write leaked into backing store")
	}

	v, err := m.Read(0xB8000, W8)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if v != 0x99 {
		t.Errorf("expected observer-produced value 0x99, got %#x", v)
	}
}

func TestFetchFaultTaggedWithInitiatingIP(t *testing.T) {
	m := New(DefaultMaxAddr)
	const startIP = 0x7C00

	called := 0
	m.SetTranslator(func(linear uint64, write, fetch bool) (uint64, *FaultInfo) {
		called++
		if called == 2 {
			return 0, &FaultInfo{Vector: 14, ErrorCode: 0}
		}
		return linear, nil
	})

	m.BeginFetch(startIP)
	if _, fault := m.FetchByte(); fault != nil {
		t.Fatalf("first fetch should succeed, got fault %v", fault)
	}
	_, fault := m.FetchByte()
	if fault == nil {
		t.Fatal("expected fault on second fetch byte")
	}
	if fault.FaultAddr != startIP {
		t.Errorf("fault tagged with %#x, want initiating IP %#x", fault.FaultAddr, startIP)
	}
}

func TestAllocatePretouchesPages(t *testing.T) {
	m := New(DefaultMaxAddr)
	m.Allocate(0x5000, PageSize*3)

	for _, addr := range []uint64{0x5000, 0x6000, 0x7000} {
		if m.page(addr, false) == nil {
			t.Errorf("expected page at %#x to be allocated", addr)
		}
	}
}
