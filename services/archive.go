package services

import (
	"bufio"
	"encoding/json"
	"fmt"
	"forklift-backend/models"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// ArchiveEntry is one line of the delivery archive.
type ArchiveEntry struct {
	Seq         uint64          `json:"seq"`
	Sequence    int             `json:"sequence"`
	ItemID      string          `json:"item_id"`
	Aisle       string          `json:"aisle"`
	Weight      float64         `json:"weight"`
	Target      models.Position `json:"target"`
	Energy      float64         `json:"energy"`
	DeliveredAt time.Time       `json:"delivered_at"`
}

// HistoryArchive appends delivery records to hourly zstd-compressed JSONL
// files named deliveries-YYYY-MM-DD-HH.jsonl.zst under baseDir.
type HistoryArchive struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewHistoryArchive(baseDir string) *HistoryArchive {
	return &HistoryArchive{
		baseDir: baseDir,
		prefix:  "deliveries",
		now:     time.Now,
	}
}

// HandleEvent archives delivery_completed events and ignores the rest.
func (a *HistoryArchive) HandleEvent(ev models.EngineEvent) {
	if ev.Type != models.EventDeliveryCompleted || ev.Record == nil {
		return
	}
	rec := ev.Record
	entry := ArchiveEntry{
		Seq:         ev.Seq,
		Sequence:    rec.Sequence,
		ItemID:      rec.Item.ID,
		Aisle:       rec.Item.Aisle,
		Weight:      rec.Item.Weight,
		Target:      rec.Item.Target,
		Energy:      rec.Energy,
		DeliveredAt: rec.DeliveredAt,
	}
	if err := a.Write(entry); err != nil {
		log.Printf("❌ 배송 기록 아카이브 실패: %v", err)
	}
}

func (a *HistoryArchive) Write(v any) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	hour := a.now().UTC().Format("2006-01-02-15")
	if hour != a.curHour {
		if err := a.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := a.w.Write(b); err != nil {
		return err
	}
	if err := a.w.WriteByte('\n'); err != nil {
		return err
	}
	return a.w.Flush()
}

func (a *HistoryArchive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closeLocked()
}

func (a *HistoryArchive) rotateLocked(hour string) error {
	if err := a.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(a.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(a.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	a.f = f
	a.enc = enc
	a.w = bufio.NewWriterSize(enc, 32*1024)
	a.curHour = hour
	log.Printf("🗄️  배송 아카이브 파일: %s", a.pathForHour(hour))
	return nil
}

func (a *HistoryArchive) closeLocked() error {
	var err error
	if a.w != nil {
		_ = a.w.Flush()
	}
	if a.enc != nil {
		err = a.enc.Close()
		a.enc = nil
	}
	if a.f != nil {
		_ = a.f.Close()
		a.f = nil
	}
	a.w = nil
	a.curHour = ""
	return err
}

func (a *HistoryArchive) pathForHour(hour string) string {
	return filepath.Join(a.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", a.prefix, hour))
}

// ReadArchive decodes every entry of one archive file.
func ReadArchive(path string) ([]ArchiveEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var entries []ArchiveEntry
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e ArchiveEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("decode archive line: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, sc.Err()
}
