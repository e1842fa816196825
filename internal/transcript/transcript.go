// Package transcript mirrors conversations to append-only JSONL files, one
// file per session, so an operator can replay what was said and what was
// approved long after the session ended.
package transcript

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultDirName   = ".reins/transcripts"
	transcriptExt    = ".jsonl"
	maxJSONLLineSize = 1024 * 1024
)

// Entry types recorded by the runner.
const (
	TypeUserMessage  = "user_message"
	TypeAgentMessage = "agent_message"
	TypeToolResult   = "tool_result"
	TypeConfirmation = "confirmation"
)

var (
	ErrDirRequired        = errors.New("transcript directory is required")
	ErrSessionIDRequired  = errors.New("session id is required")
	ErrInvalidSessionID   = errors.New("invalid session id")
	ErrEntryTypeRequired  = errors.New("entry type is required")
	ErrTranscriptNotFound = errors.New("transcript not found")
)

// Entry is one append-only record in a session transcript.
type Entry struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	// Content is message text, or the decision string for confirmations.
	Content    string          `json:"content,omitempty"`
	Name       string          `json:"name,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	TS         int64           `json:"ts"`
}

// Info describes one transcript file on disk.
type Info struct {
	SessionID string
	Path      string
	UpdatedAt time.Time
	SizeBytes int64
}

// Store persists transcripts as append-only JSONL files under one directory.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore constructs a transcript store rooted at dir.
func NewStore(dir string) (*Store, error) {
	root := strings.TrimSpace(dir)
	if root == "" {
		return nil, ErrDirRequired
	}
	return &Store{dir: root}, nil
}

// DefaultDir returns the canonical transcript directory under a home or
// project root.
func DefaultDir(root string) string {
	return filepath.Join(root, defaultDirName)
}

// Append appends one entry to a session's transcript. A blank entry ID is
// minted here so callers only describe what happened.
func (s *Store) Append(ctx context.Context, sessionID string, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.transcriptPath(sessionID)
	if err != nil {
		return err
	}

	entry.Type = strings.TrimSpace(entry.Type)
	if entry.Type == "" {
		return ErrEntryTypeRequired
	}
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	if entry.TS <= 0 {
		entry.TS = time.Now().Unix()
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal transcript entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create transcript dir %s: %w", s.dir, err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Write(append(raw, '\n')); err != nil {
		return fmt.Errorf("append transcript entry: %w", err)
	}
	return nil
}

// Load reads all entries from one session's transcript.
func (s *Store) Load(ctx context.Context, sessionID string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.transcriptPath(sessionID)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTranscriptNotFound, strings.TrimSpace(sessionID))
		}
		return nil, fmt.Errorf("open transcript %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxJSONLLineSize)

	entries := make([]Entry, 0, 64)
	lineNum := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("decode transcript line %d: %w", lineNum, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("decode transcript line too large (> %d bytes): %w", maxJSONLLineSize, err)
		}
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		return nil, fmt.Errorf("scan transcript: %w", err)
	}

	return entries, nil
}

// List returns known transcripts sorted by newest first.
func (s *Store) List(ctx context.Context) ([]Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read transcript dir %s: %w", s.dir, err)
	}

	out := make([]Info, 0, len(items))
	for _, item := range items {
		if item.IsDir() || filepath.Ext(item.Name()) != transcriptExt {
			continue
		}

		info, err := item.Info()
		if err != nil {
			return nil, fmt.Errorf("read transcript file info %s: %w", item.Name(), err)
		}

		out = append(out, Info{
			SessionID: strings.TrimSuffix(item.Name(), transcriptExt),
			Path:      filepath.Join(s.dir, item.Name()),
			UpdatedAt: info.ModTime(),
			SizeBytes: info.Size(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].SessionID > out[j].SessionID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *Store) transcriptPath(sessionID string) (string, error) {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return "", ErrSessionIDRequired
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("%w: %s", ErrInvalidSessionID, id)
	}
	return filepath.Join(s.dir, id+transcriptExt), nil
}
