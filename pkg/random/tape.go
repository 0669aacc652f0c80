package random

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"

	pkgerrors "github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

var (
	ErrTapeExhausted = errors.New("random tape exhausted")
	ErrTapeMismatch  = errors.New("random tape mismatch")
)

type DrawKind string

const (
	KindBytes DrawKind = "bytes"
	KindTime  DrawKind = "time"
)

// Draw 一次取随机数的记录
type Draw struct {
	Kind  DrawKind `json:"kind"`
	Bytes string   `json:"bytes,omitempty"` // hex
	Time  uint32   `json:"time,omitempty"`
}

// Tape 按顺序保存的全部随机数，可以持久化后在另一次运行里回放
type Tape struct {
	Draws []Draw `json:"draws"`
}

func (t *Tape) Len() int {
	return len(t.Draws)
}

// Save 以JSON格式写入文件
func (t *Tape) Save(fs afero.Fs, path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return pkgerrors.Wrap(err, "encode tape")
	}
	if err := afero.WriteFile(fs, path, data, 0644); err != nil {
		return pkgerrors.Wrap(err, "write tape")
	}
	return nil
}

// LoadTape 读取Save写入的文件
func LoadTape(fs afero.Fs, path string) (*Tape, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "read tape")
	}
	t := &Tape{}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, pkgerrors.Wrap(err, "decode tape")
	}
	for i, d := range t.Draws {
		switch d.Kind {
		case KindBytes:
			if _, err := hex.DecodeString(d.Bytes); err != nil {
				return nil, pkgerrors.Wrapf(err, "tape draw %d", i)
			}
		case KindTime:
		default:
			return nil, pkgerrors.Wrapf(ErrTapeMismatch, "tape draw %d has kind %q", i, d.Kind)
		}
	}
	return t, nil
}

// Recorder 包装另一个Source，把每次取到的值追加到Tape
type Recorder struct {
	mu   sync.Mutex
	src  Source
	tape Tape
}

func NewRecorder(src Source) *Recorder {
	return &Recorder{src: src}
}

func (r *Recorder) Bytes(n int) ([]byte, error) {
	b, err := r.src.Bytes(n)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.tape.Draws = append(r.tape.Draws, Draw{Kind: KindBytes, Bytes: hex.EncodeToString(b)})
	r.mu.Unlock()
	return b, nil
}

func (r *Recorder) Timestamp() (uint32, error) {
	ts, err := r.src.Timestamp()
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	r.tape.Draws = append(r.tape.Draws, Draw{Kind: KindTime, Time: ts})
	r.mu.Unlock()
	return ts, nil
}

// Tape 返回到目前为止记录内容的拷贝
func (r *Recorder) Tape() *Tape {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &Tape{Draws: append([]Draw{}, r.tape.Draws...)}
}

// Replay 严格按Tape的顺序和长度回放
type Replay struct {
	mu   sync.Mutex
	tape *Tape
	pos  int
}

func NewReplay(t *Tape) *Replay {
	return &Replay{tape: t}
}

func (r *Replay) next(kind DrawKind) (Draw, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pos >= len(r.tape.Draws) {
		return Draw{}, ErrTapeExhausted
	}
	d := r.tape.Draws[r.pos]
	if d.Kind != kind {
		log.Tracef("tape draw %d: want %s, have %s", r.pos, kind, d.Kind)
		return Draw{}, ErrTapeMismatch
	}
	r.pos++
	return d, nil
}

func (r *Replay) Bytes(n int) ([]byte, error) {
	d, err := r.next(KindBytes)
	if err != nil {
		return nil, err
	}
	b, err := hex.DecodeString(d.Bytes)
	if err != nil {
		return nil, err
	}
	if len(b) != n {
		log.Tracef("tape draw %d: want %d bytes, have %d", r.pos-1, n, len(b))
		return nil, ErrTapeMismatch
	}
	return b, nil
}

func (r *Replay) Timestamp() (uint32, error) {
	d, err := r.next(KindTime)
	if err != nil {
		return 0, err
	}
	return d.Time, nil
}

// Remaining 尚未回放的记录数
func (r *Replay) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tape.Draws) - r.pos
}
