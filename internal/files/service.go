package files

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/Tyrowin/ichat/internal/auth"
)

// DefaultRoom is used when an upload names no room.
const DefaultRoom = "general"

// Notifier tells the chat side about file events.
type Notifier interface {
	FileShared(ctx context.Context, rec Record) error
	FileDeleted(ctx context.Context, rec Record, by string) error
	AccessUpdated(ctx context.Context, rec Record, by string) error
}

// Recorder receives file operation metrics.
type Recorder interface {
	FileOperation(op, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) FileOperation(string, string) {}

// Options configures a Service.
type Options struct {
	MaxSize  int64
	Notifier Notifier
	Recorder Recorder
	Logger   *zap.Logger
	Now      func() time.Time
}

// Service implements upload, listing, download, deletion and access
// management of shared files.
type Service struct {
	table   *Table
	store   BlobStore
	notify  Notifier
	rec     Recorder
	log     *zap.Logger
	maxSize int64
	now     func() time.Time
}

// NewService returns a service storing contents in store.
func NewService(table *Table, store BlobStore, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = 10 << 20
	}
	return &Service{
		table:   table,
		store:   store,
		notify:  opts.Notifier,
		rec:     opts.Recorder,
		log:     opts.Logger,
		maxSize: opts.MaxSize,
		now:     opts.Now,
	}
}

// MaxSize returns the upload size limit in bytes.
func (s *Service) MaxSize() int64 {
	return s.maxSize
}

// UploadRequest describes one upload.
type UploadRequest struct {
	Owner    auth.Identity
	Filename string
	MimeType string
	Room     string
	Context  ChatContext
	Private  bool
	Body     io.Reader
}

// Upload stores the body and records it with the owner holding full access.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (rec Record, err error) {
	defer func() { s.observe("upload", err) }()

	if req.Owner.Username == "" {
		return Record{}, ErrUnauthenticated
	}
	name := filepath.Base(strings.TrimSpace(req.Filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return Record{}, ErrEmptyUpload
	}
	chat := resolveContext(req.Room, req.Context)
	if !chat.Valid() {
		return Record{}, ErrInvalidContext
	}
	room := strings.ToLower(strings.TrimSpace(req.Room))
	if room == "" {
		room = DefaultRoom
	}

	id, size, err := s.store.Put(ctx, filepath.Ext(name), req.Body, s.maxSize)
	if err != nil {
		return Record{}, err
	}
	visibility := VisibilityPublic
	if req.Private {
		visibility = VisibilityPrivate
	}
	rec = Record{
		ID:           id,
		OriginalName: name,
		MimeType:     req.MimeType,
		Size:         size,
		Owner:        req.Owner.Username,
		Room:         room,
		Context:      chat,
		Visibility:   visibility,
		Overrides:    map[string]Permission{req.Owner.Username: PermFull},
		UploadedAt:   s.now(),
	}
	s.table.Put(rec)

	s.log.Info("file uploaded",
		zap.String("file", id),
		zap.String("name", name),
		zap.String("owner", rec.Owner),
		zap.String("size", humanize.Bytes(uint64(size))),
		zap.String("chat_type", string(chat.Type)),
		zap.String("chat_target", chat.Target),
		zap.Bool("private", req.Private))

	if s.notify != nil {
		if nerr := s.notify.FileShared(ctx, rec); nerr != nil {
			s.log.Warn("failed to announce upload", zap.String("file", id), zap.Error(nerr))
		}
	}
	return rec, nil
}

// Listing is a record as seen by one user.
type Listing struct {
	Filename     string      `json:"filename"`
	OriginalName string      `json:"originalName"`
	Size         int64       `json:"size"`
	SizeText     string      `json:"sizeText"`
	UploadedBy   string      `json:"uploadedBy"`
	UploadedAt   time.Time   `json:"uploadedAt"`
	IsPrivate    bool        `json:"isPrivate"`
	ChatContext  ChatContext `json:"chatContext"`
	Permission   Permission  `json:"permission"`
}

// List returns the files bound to the chat context that who may read.
func (s *Service) List(_ context.Context, who auth.Identity, room string, chat ChatContext) []Listing {
	chat = resolveContext(room, chat)
	out := []Listing{}
	for _, r := range s.table.All() {
		if r.Context != chat || !CanRead(r, who) {
			continue
		}
		out = append(out, Listing{
			Filename:     r.ID,
			OriginalName: r.OriginalName,
			Size:         r.Size,
			SizeText:     humanize.Bytes(uint64(r.Size)),
			UploadedBy:   r.Owner,
			UploadedAt:   r.UploadedAt,
			IsPrivate:    r.IsPrivate(),
			ChatContext:  r.Context,
			Permission:   r.Effective(who),
		})
	}
	s.rec.FileOperation("list", "ok")
	return out
}

// Open returns the record and contents of a file. who is nil for
// unauthenticated callers, who may only fetch public files.
func (s *Service) Open(ctx context.Context, id string, who *auth.Identity) (rec Record, body io.ReadCloser, err error) {
	defer func() { s.observe("download", err) }()

	rec, ok := s.table.Get(id)
	if !ok {
		return Record{}, nil, ErrNotFound
	}
	if rec.IsPrivate() {
		if who == nil {
			return Record{}, nil, ErrUnauthenticated
		}
		if !CanRead(rec, *who) {
			return Record{}, nil, ErrForbidden
		}
	}
	body, err = s.store.Open(ctx, rec.ID)
	if err != nil {
		return Record{}, nil, err
	}
	return rec, body, nil
}

// Delete removes a file owned by who, or any file when who is an admin.
func (s *Service) Delete(ctx context.Context, id string, who auth.Identity) (rec Record, err error) {
	defer func() { s.observe("delete", err) }()

	rec, ok := s.table.Get(id)
	if !ok {
		return Record{}, ErrNotFound
	}
	if !CanDelete(rec, who) {
		return Record{}, ErrForbidden
	}
	// only the caller that removes the record goes on to delete the blob
	rec, ok = s.table.Delete(rec.ID)
	if !ok {
		return Record{}, ErrNotFound
	}
	if err := s.store.Delete(ctx, rec.ID); err != nil {
		s.table.Put(rec)
		return Record{}, err
	}
	s.log.Info("file deleted", zap.String("file", rec.ID), zap.String("by", who.Username))

	if s.notify != nil {
		if nerr := s.notify.FileDeleted(ctx, rec, who.Username); nerr != nil {
			s.log.Warn("failed to announce deletion", zap.String("file", rec.ID), zap.Error(nerr))
		}
	}
	return rec, nil
}

// Access returns the record for an access list view.
func (s *Service) Access(_ context.Context, id string, who auth.Identity) (rec Record, err error) {
	defer func() { s.observe("access_view", err) }()

	rec, ok := s.table.Get(id)
	if !ok {
		return Record{}, ErrNotFound
	}
	if !CanManageAccess(rec, who) {
		return Record{}, ErrForbidden
	}
	return rec, nil
}

// UpdateAccess applies upd and returns the updated record together with the
// entries that were skipped.
func (s *Service) UpdateAccess(ctx context.Context, id string, who auth.Identity, upd AccessUpdate) (rec Record, rejected []Rejection, err error) {
	defer func() { s.observe("access_update", err) }()

	rec, err = s.table.Update(id, func(r *Record) error {
		if !CanManageAccess(*r, who) {
			return ErrForbidden
		}
		rejected = ApplyAccessUpdate(r, upd)
		return nil
	})
	if err != nil {
		return Record{}, nil, err
	}
	s.log.Info("file access updated",
		zap.String("file", rec.ID),
		zap.String("by", who.Username),
		zap.String("default", string(rec.Visibility)),
		zap.Int("rejected", len(rejected)))

	if s.notify != nil {
		if nerr := s.notify.AccessUpdated(ctx, rec, who.Username); nerr != nil {
			s.log.Warn("failed to announce access change", zap.String("file", rec.ID), zap.Error(nerr))
		}
	}
	return rec, rejected, nil
}

func (s *Service) observe(op string, err error) {
	switch {
	case err == nil:
		s.rec.FileOperation(op, "ok")
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrUnauthenticated):
		s.rec.FileOperation(op, "denied")
	default:
		s.rec.FileOperation(op, "error")
	}
}

// resolveContext fills the defaults used when a request omits its chat
// context: a room conversation targeting the request's room.
func resolveContext(room string, chat ChatContext) ChatContext {
	room = strings.ToLower(strings.TrimSpace(room))
	if room == "" {
		room = DefaultRoom
	}
	chat.Type = ChatType(strings.ToLower(strings.TrimSpace(string(chat.Type))))
	chat.Target = strings.TrimSpace(chat.Target)
	if chat.Type == "" {
		chat.Type = ChatRoom
	}
	if chat.Target == "" {
		chat.Target = room
	}
	if chat.Type != ChatPrivate {
		chat.Target = strings.ToLower(chat.Target)
	}
	return chat
}
