package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestLog(t *testing.T) (*Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open audit log: %v", err)
	}
	return l, path
}

func testEntry(event, outcome string) Entry {
	return Entry{
		Timestamp:  time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC).Format(TimestampFormat),
		ContractID: "ctr-test",
		Event:      event,
		Actor:      "Counterparty",
		Version:    2,
		Status:     "Negotiating",
		Outcome:    outcome,
	}
}

func writeLines(t *testing.T, path string, lines []string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600); err != nil {
		t.Fatal(err)
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestSequentialWritesProduceValidChain(t *testing.T) {
	l, path := newTestLog(t)
	for i := 0; i < 5; i++ {
		if err := l.Record(testEntry(EventProposed, OutcomeOK)); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	l.Close()

	result := Verify(path)
	if !result.Valid {
		t.Fatalf("expected valid chain, got error at line %d: %s", result.ErrorLine, result.Error)
	}
	if result.Lines != 5 {
		t.Fatalf("expected 5 lines, got %d", result.Lines)
	}
}

func TestVerifyDetectsTamperedEntry(t *testing.T) {
	l, path := newTestLog(t)
	for i := 0; i < 3; i++ {
		l.Record(testEntry(EventProposalRejected, OutcomeRejected))
	}
	l.Close()

	lines := readLines(t, path)
	lines[1] = strings.Replace(lines[1], `"rejected"`, `"ok"`, 1)
	writeLines(t, path, lines)

	result := Verify(path)
	if result.Valid {
		t.Fatal("expected tampered chain to be invalid")
	}
	if result.ErrorLine != 3 {
		t.Fatalf("expected error at line 3, got line %d", result.ErrorLine)
	}
}

func TestVerifyDetectsDeletedEntry(t *testing.T) {
	l, path := newTestLog(t)
	for i := 0; i < 3; i++ {
		l.Record(testEntry(EventProposed, OutcomeOK))
	}
	l.Close()

	lines := readLines(t, path)
	writeLines(t, path, []string{lines[0], lines[2]})

	result := Verify(path)
	if result.Valid || result.ErrorLine != 2 {
		t.Fatalf("expected error at line 2, got %+v", result)
	}
}

func TestVerifyDetectsInsertedEntry(t *testing.T) {
	l, path := newTestLog(t)
	for i := 0; i < 3; i++ {
		l.Record(testEntry(EventProposed, OutcomeOK))
	}
	l.Close()

	lines := readLines(t, path)
	fake := testEntry(EventActivated, OutcomeOK)
	fake.PrevHash = "sha256:fake"
	fakeJSON, _ := json.Marshal(fake)
	writeLines(t, path, []string{lines[0], string(fakeJSON), lines[1], lines[2]})

	if result := Verify(path); result.Valid {
		t.Fatal("expected chain with inserted entry to be invalid")
	}
}

func TestVerifyIgnoresKeyOrder(t *testing.T) {
	l, path := newTestLog(t)
	l.Record(testEntry(EventCreated, OutcomeOK))
	l.Record(testEntry(EventSubmitted, OutcomeOK))
	l.Close()

	lines := readLines(t, path)
	var generic map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &generic); err != nil {
		t.Fatal(err)
	}
	reordered, _ := json.Marshal(generic) // map keys marshal sorted
	writeLines(t, path, []string{string(reordered), lines[1]})

	if result := Verify(path); !result.Valid {
		t.Fatalf("expected reordered keys to keep the chain valid, got %s", result.Error)
	}
}

func TestEmptyLogPassesVerification(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jsonl")
	os.WriteFile(path, []byte{}, 0600)

	result := Verify(path)
	if !result.Valid || result.Lines != 0 {
		t.Fatalf("expected empty log to be valid, got %+v", result)
	}
}

func TestVerifyMissingFile(t *testing.T) {
	if result := Verify(filepath.Join(t.TempDir(), "nope.jsonl")); result.Valid || result.Error == "" {
		t.Fatalf("expected open error, got %+v", result)
	}
}

func TestConcurrentWritesSerializeCorrectly(t *testing.T) {
	l, path := newTestLog(t)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Record(testEntry(EventUsage, OutcomeOK))
		}()
	}
	wg.Wait()
	l.Close()

	result := Verify(path)
	if !result.Valid || result.Lines != 100 {
		t.Fatalf("expected 100 valid lines, got %+v", result)
	}
}

func TestGenesisHashOnFirstEntry(t *testing.T) {
	l, path := newTestLog(t)
	l.Record(Entry{ContractID: "ctr-1", Event: EventCreated, Outcome: OutcomeOK})
	l.Close()

	var entry Entry
	json.Unmarshal([]byte(readLines(t, path)[0]), &entry)
	if entry.PrevHash != GenesisHash {
		t.Fatalf("expected genesis hash, got %s", entry.PrevHash)
	}
	if entry.Timestamp == "" {
		t.Fatal("expected timestamp to be filled")
	}
}

func TestHashLineFormat(t *testing.T) {
	h := HashLine([]byte(`{"b":1,"a":2}`))
	if h != HashLine([]byte(`{"a":2, "b":1}`)) {
		t.Fatal("expected canonical hashing to ignore key order and whitespace")
	}
	if !strings.HasPrefix(h, "sha256:") || len(h) != 7+64 {
		t.Fatalf("unexpected hash %s", h)
	}
	if HashLine([]byte("v1")) == HashLine([]byte("v2")) {
		t.Fatal("expected different hashes for different inputs")
	}
}

func TestOpenExistingLogContinuesChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.jsonl")

	l1, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		l1.Record(testEntry(EventProposed, OutcomeOK))
	}
	l1.Close()

	l2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		l2.Record(testEntry(EventUsage, OutcomeOK))
	}
	l2.Close()

	result := Verify(path)
	if !result.Valid || result.Lines != 5 {
		t.Fatalf("expected 5 valid lines after reopen, got %+v", result)
	}
}

func TestReplayFiltersByContract(t *testing.T) {
	l, path := newTestLog(t)
	l.Record(testEntry(EventProposed, OutcomeOK))
	l.Record(testEntry(EventProposalRejected, OutcomeRejected))
	other := testEntry(EventUsage, OutcomeOK)
	other.ContractID = "ctr-other"
	l.Record(other)
	used := testEntry(EventUsage, OutcomeOK)
	used.Status = "Active"
	l.Record(used)
	l.Close()

	result, err := Replay(path, ReplayFilter{ContractID: "ctr-test"})
	if err != nil {
		t.Fatal(err)
	}
	s := result.Summary
	if s.Total != 3 || s.OKCount != 2 || s.RejectedCount != 1 || s.ProposalCount != 2 || s.UsageCount != 1 {
		t.Errorf("unexpected summary %+v", s)
	}
	if s.LastStatus != "Active" {
		t.Errorf("expected last status Active, got %s", s.LastStatus)
	}

	text := FormatTimeline(result)
	if !strings.Contains(text, "Contract: ctr-test") || !strings.Contains(text, "1 rejected") {
		t.Errorf("unexpected timeline:\n%s", text)
	}
	if _, err := FormatJSON(result); err != nil {
		t.Fatal(err)
	}
}

func TestReplayTimeRange(t *testing.T) {
	l, path := newTestLog(t)
	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		e := testEntry(EventUsage, OutcomeOK)
		e.Timestamp = base.Add(time.Duration(i) * time.Hour).Format(TimestampFormat)
		l.Record(e)
	}
	l.Close()

	result, err := Replay(path, ReplayFilter{ContractID: "ctr-test", From: base.Add(time.Hour), To: base.Add(2 * time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Entries) != 2 {
		t.Errorf("expected 2 entries in range, got %d", len(result.Entries))
	}
	if got := FormatTimeline(&ReplayResult{ContractID: "x"}); !strings.Contains(got, "No entries found") {
		t.Errorf("unexpected empty timeline %q", got)
	}
}

func TestHeadMatchesVerify(t *testing.T) {
	l, path := newTestLog(t)
	if l.Head() != GenesisHash {
		t.Fatalf("expected genesis head on a new log, got %s", l.Head())
	}
	l.now = func() time.Time { return time.Date(2026, 5, 2, 8, 30, 0, 0, time.UTC) }
	l.Record(Entry{ContractID: "ctr-1", Event: EventCreated, Outcome: OutcomeOK})
	l.Record(Entry{ContractID: "ctr-1", Event: EventSubmitted, Outcome: OutcomeOK})
	head := l.Head()
	l.Close()

	result := Verify(path)
	if !result.Valid || result.Head != head {
		t.Fatalf("expected verify head %s, got %+v", head, result)
	}
	var first Entry
	json.Unmarshal([]byte(readLines(t, path)[0]), &first)
	if first.Timestamp != "2026-05-02T08:30:00.000Z" {
		t.Errorf("expected injected clock timestamp, got %s", first.Timestamp)
	}
}

func TestTimelineMarksRejections(t *testing.T) {
	res := &ReplayResult{ContractID: "ctr-1"}
	for _, e := range []Entry{testEntry(EventProposed, OutcomeOK), testEntry(EventProposalRejected, OutcomeRejected)} {
		res.Entries = append(res.Entries, e)
		res.Summary.add(e)
	}
	rows := strings.Split(strings.TrimSpace(FormatTimeline(res)), "\n")
	if len(rows) != 6 {
		t.Fatalf("expected header, 2 rules, 2 rows and summary, got %d lines", len(rows))
	}
	if !strings.HasPrefix(rows[3], "x ") || strings.HasPrefix(rows[2], "x ") {
		t.Errorf("expected only the rejected row to be marked:\n%s", strings.Join(rows, "\n"))
	}
}
