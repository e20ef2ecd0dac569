package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/vectordb"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// IndexState 会话索引状态
type IndexState string

const (
	IndexPending  IndexState = "pending"  // 尚未上传
	IndexBuilding IndexState = "building" // 构建中
	IndexReady    IndexState = "ready"    // 可检索
	IndexFailed   IndexState = "failed"   // 构建失败
)

// Workbook 一次上传规范化后的工作簿
type Workbook struct {
	UploadID   string   `json:"upload_id"`
	FileName   string   `json:"file_name"`
	StorageKey string   `json:"storage_key,omitempty"`
	Sheets     []string `json:"sheets"`
	Text       string   `json:"-"`
}

// BuildFunc 构建索引的函数，generation为本次构建的代数
type BuildFunc func(ctx context.Context, generation uint64) (vectordb.Index, error)

// buildFuture 一次索引构建的结果
type buildFuture struct {
	generation uint64
	workbook   *Workbook
	startedAt  time.Time
	cancel     context.CancelFunc
	done       chan struct{}
	users      sync.WaitGroup // 正在使用该索引的查询

	// done关闭后只读
	index      vectordb.Index
	err        error
	finishedAt time.Time
}

func (f *buildFuture) finished() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Session 单个用户会话，独占自己的索引
type Session struct {
	ID        string
	CreatedAt time.Time

	mu         sync.Mutex
	generation uint64
	current    *buildFuture
	closed     bool
	logger     *logrus.Logger
}

// SessionStatus 会话与索引状态
type SessionStatus struct {
	SessionID  string     `json:"session_id"`
	Generation uint64     `json:"generation"`
	State      IndexState `json:"state"`
	Closed     bool       `json:"closed,omitempty"`
	Passages   int        `json:"passages"`
	Error      string     `json:"error,omitempty"`
	Workbook   *Workbook  `json:"workbook,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	BuiltAt    *time.Time `json:"built_at,omitempty"`
}

// IndexHandle 查询期间持有的索引，用完必须Release
type IndexHandle struct {
	Index      vectordb.Index
	Generation uint64
	Workbook   *Workbook
	release    sync.Once
	future     *buildFuture
}

// Release 释放索引引用
func (h *IndexHandle) Release() {
	h.release.Do(h.future.users.Done)
}

func newSession(logger *logrus.Logger) *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		logger:    logger,
	}
}

// Rebuild 开始新一代索引构建
// 之前进行中的构建会被取消，旧的结果即使完成也会被丢弃
func (s *Session) Rebuild(ctx context.Context, workbook *Workbook, build BuildFunc) uint64 {
	// 构建属于会话而不是发起上传的请求
	buildCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return 0
	}
	s.generation++
	f := &buildFuture{
		generation: s.generation,
		workbook:   workbook,
		startedAt:  time.Now(),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	previous := s.current
	s.current = f
	s.mu.Unlock()

	if previous != nil {
		s.retire(previous)
	}

	go s.run(buildCtx, f, build)
	return f.generation
}

func (s *Session) run(ctx context.Context, f *buildFuture, build BuildFunc) {
	log := s.logger.WithFields(logrus.Fields{"session_id": s.ID, "generation": f.generation})

	defer func() {
		if r := recover(); r != nil {
			f.index = nil
			f.err = NewBuildError(ErrCodeBuildPanic, fmt.Sprintf("index build panicked: %v", r), nil)
		}
		f.finishedAt = time.Now()

		s.mu.Lock()
		stale := s.current != f
		s.mu.Unlock()

		if stale && f.index != nil {
			// 已被新的上传取代
			_ = f.index.Close()
			f.index = nil
		}
		close(f.done)

		switch {
		case stale:
			log.Info("Discarded superseded index build")
		case f.err != nil:
			log.WithError(f.err).Error("Index build failed")
		default:
			log.WithFields(logrus.Fields{
				"passages":   f.index.Len(),
				"latency_ms": f.finishedAt.Sub(f.startedAt).Milliseconds(),
			}).Info("Index build completed")
		}
	}()

	index, err := build(ctx, f.generation)
	if err == nil && index == nil {
		err = NewBuildError(ErrCodeIndexFailed, "index builder returned no index", nil)
	}
	if err == nil && ctx.Err() != nil {
		err = NewBuildError(ErrCodeBuildCancelled, "index build cancelled", ctx.Err())
		if index != nil {
			_ = index.Close()
			index = nil
		}
	}
	f.index, f.err = index, err
}

// retire 取消旧构建，等查询全部释放后关闭旧索引
func (s *Session) retire(f *buildFuture) {
	f.cancel()
	go func() {
		<-f.done
		f.users.Wait()
		if f.index != nil {
			_ = f.index.Close()
		}
	}()
}

// Index 等待当前代的索引构建完成
// 等待期间若有新的上传，会继续等待最新一代
func (s *Session) Index(ctx context.Context) (*IndexHandle, error) {
	for {
		s.mu.Lock()
		f := s.current
		if f == nil {
			s.mu.Unlock()
			return nil, NewRetrievalError(ErrCodeNoWorkbook, "no workbook has been uploaded to this session", nil)
		}
		f.users.Add(1)
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			f.users.Done()
			return nil, ctx.Err()
		case <-f.done:
		}

		s.mu.Lock()
		stale := s.current != f
		s.mu.Unlock()
		if stale {
			f.users.Done()
			continue
		}
		if f.err != nil {
			f.users.Done()
			return nil, f.err
		}
		return &IndexHandle{Index: f.index, Generation: f.generation, Workbook: f.workbook, future: f}, nil
	}
}

// Workbook 返回当前代的工作簿，不等待索引构建
func (s *Session) Workbook() (*Workbook, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.workbook == nil {
		return nil, 0, NewRetrievalError(ErrCodeNoWorkbook, "no workbook has been uploaded to this session", nil)
	}
	return s.current.workbook, s.current.generation, nil
}

// Status 返回会话状态
func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	f := s.current
	status := SessionStatus{
		SessionID:  s.ID,
		Generation: s.generation,
		State:      IndexPending,
		Closed:     s.closed,
		CreatedAt:  s.CreatedAt,
	}
	s.mu.Unlock()

	if f == nil {
		return status
	}
	status.Workbook = f.workbook
	if !f.finished() {
		status.State = IndexBuilding
		return status
	}
	built := f.finishedAt
	status.BuiltAt = &built
	if f.err != nil {
		status.State = IndexFailed
		status.Error = f.err.Error()
		return status
	}
	status.State = IndexReady
	if f.index != nil {
		status.Passages = f.index.Len()
	}
	return status
}

// close 取消构建并释放索引
func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	f := s.current
	s.current = nil
	s.mu.Unlock()

	if f != nil {
		s.retire(f)
	}
}

// SessionManager 会话注册表，长时间不活动的会话自动过期
type SessionManager struct {
	sessions *gocache.Cache
	ttl      time.Duration
	logger   *logrus.Logger
}

// NewSessionManager 创建会话管理器
func NewSessionManager(ttl time.Duration, logger *logrus.Logger) *SessionManager {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	cleanup := ttl / 2
	if cleanup > 10*time.Minute {
		cleanup = 10 * time.Minute
	}

	sessions := gocache.New(ttl, cleanup)
	sessions.OnEvicted(func(id string, v interface{}) {
		if sess, ok := v.(*Session); ok {
			sess.close()
			logger.WithField("session_id", id).Info("Session expired")
		}
	})

	return &SessionManager{sessions: sessions, ttl: ttl, logger: logger}
}

// Create 创建新会话
func (m *SessionManager) Create() *Session {
	sess := newSession(m.logger)
	m.sessions.SetDefault(sess.ID, sess)
	m.logger.WithField("session_id", sess.ID).Info("Session created")
	return sess
}

// Get 获取会话并刷新过期时间
func (m *SessionManager) Get(id string) (*Session, error) {
	v, found := m.sessions.Get(id)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess := v.(*Session)
	m.sessions.SetDefault(id, sess)
	return sess, nil
}

// Delete 删除会话并释放索引
func (m *SessionManager) Delete(id string) error {
	if _, found := m.sessions.Get(id); !found {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	// Delete会触发OnEvicted
	m.sessions.Delete(id)
	return nil
}

// Count 当前会话数
func (m *SessionManager) Count() int {
	return m.sessions.ItemCount()
}

// Close 关闭所有会话
func (m *SessionManager) Close() {
	for id := range m.sessions.Items() {
		m.sessions.Delete(id)
	}
}
