package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/himanshujainsanghai/up-igrs-new-sub002/infrastructure/meta"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/infrastructure/storage"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/grievance"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/message"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/session"
)

const testUser = "919876543210"

var testNow = time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)

type fakeCreator struct {
	mu    sync.Mutex
	calls []grievance.Grievance
	err   error
}

func (f *fakeCreator) Create(_ context.Context, g grievance.Grievance) (grievance.Created, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, g)
	if f.err != nil {
		return grievance.Created{}, f.err
	}
	return grievance.Created{ID: fmt.Sprintf("id-%d", len(f.calls)), ReferenceID: fmt.Sprintf("31012026MLA%03d", len(f.calls))}, nil
}

func (f *fakeCreator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeFinder struct {
	records map[string]*grievance.Record
	err     error
}

func (f *fakeFinder) FindByReference(_ context.Context, ref string) (*grievance.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.records[ref]; ok {
		return r, nil
	}
	return nil, grievance.ErrNotFound
}

type sentReply struct {
	to    string
	reply message.Reply
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentReply
	err  error
}

func (f *fakeSender) Send(_ context.Context, to string, r message.Reply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentReply{to: to, reply: r})
	return f.err
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, s := range f.sent {
		out[i] = s.reply.PlainText()
	}
	return out
}

// mapStore is a session.Store that keeps values exactly as written.
type mapStore struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
}

func newMapStore() *mapStore {
	return &mapStore{sessions: make(map[string]*session.Session)}
}

func (m *mapStore) Get(_ context.Context, user string) *session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[user].Clone()
}

func (m *mapStore) Set(_ context.Context, s *session.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.User] = s.Clone()
}

func (m *mapStore) Del(_ context.Context, user string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, user)
}

type allowAll struct{}

func (allowAll) Allow(context.Context, string) session.Decision {
	return session.Decision{Allowed: true}
}

type fakeMedia struct {
	mu    sync.Mutex
	calls int
	mime  string
	err   error
}

func (f *fakeMedia) DownloadMedia(_ context.Context, mediaID string) (meta.Media, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return meta.Media{}, f.err
	}
	mime := f.mime
	if mime == "" {
		mime = "image/jpeg"
	}
	return meta.Media{Data: []byte("bytes-" + mediaID), MimeType: mime}, nil
}

type fakeFiles struct {
	err error
}

func (f *fakeFiles) Persist(_ context.Context, data []byte, fileName, _ string) (storage.Stored, error) {
	if f.err != nil {
		return storage.Stored{}, f.err
	}
	if fileName == "" {
		fileName = "photo.jpg"
	}
	return storage.Stored{URL: "https://files.example.com/" + string(data), FileName: fileName, Size: int64(len(data))}, nil
}

func (f *fakeFiles) Limit(kind storage.Kind) string {
	if kind == storage.KindImage {
		return "5.0 MB"
	}
	return "10 MB"
}

type fakeParser struct {
	mu     sync.Mutex
	result ParseResult
	err    error
	calls  int
	texts  []string
	// before runs ahead of returning, to simulate concurrent changes.
	before func()
}

func (f *fakeParser) Parse(_ context.Context, text string, _ []string) (ParseResult, error) {
	f.mu.Lock()
	f.calls++
	f.texts = append(f.texts, text)
	before := f.before
	f.mu.Unlock()
	if before != nil {
		before()
	}
	return f.result, f.err
}

var errBoom = errors.New("boom")

func textMsg(body string) message.Inbound {
	return message.Inbound{ID: "m-" + body, From: testUser, Type: message.TypeText, Text: body, Timestamp: testNow}
}

func imageMsg(mediaID string) message.Inbound {
	return message.Inbound{
		ID:    "img-" + mediaID,
		From:  testUser,
		Type:  message.TypeImage,
		Media: &message.Media{ID: mediaID, MimeType: "image/jpeg"},
	}
}

func pinMsg(lat, long float64) message.Inbound {
	return message.Inbound{
		ID:       "pin",
		From:     testUser,
		Type:     message.TypeLocation,
		Location: &message.Location{Latitude: lat, Longitude: long, Name: "Hazratganj", Address: "Lucknow"},
	}
}

func float(v float64) *float64 {
	return &v
}

// completeData is a fully valid step-mode record.
func completeData() session.Data {
	return session.Data{
		Name:        "Ram Kumar",
		Email:       "ram@example.com",
		Phone:       "+919876543210",
		Title:       "Pothole on Main St",
		Description: "Pothole on Main St\nIt has grown after rain",
		Category:    "roads",
		District:    "Lucknow",
		Subdistrict: "Lucknow Sadar",
		Area:        "Hazratganj",
		Location:    "Near GPO",
		Latitude:    float(26.8467),
		Longitude:   float(80.9462),
	}
}

func sessionAt(state session.State, d session.Data) *session.Session {
	s := session.New(testUser, testNow)
	s.Intent = session.IntentFile
	s.FileMode = session.FileModeStep
	s.State = state
	s.Data = d
	return s
}
