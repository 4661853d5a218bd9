// internal/services/account_service.go
package services

import (
	"fmt"
	"sync"
	"time"

	apperrors "github.com/Corphon/CreatorStudioMCP/internal/errors"
	"github.com/Corphon/CreatorStudioMCP/internal/models"
	"github.com/Corphon/CreatorStudioMCP/internal/storage"
	"github.com/Corphon/CreatorStudioMCP/internal/utils"
)

// AccountsEntry 账号连接集合在本地存储中的条目名
const AccountsEntry = "accounts"

// AccountService 管理已链接的社交发布目的地
// (platform, username)组合最多一条活动连接，重新连接原地覆盖
type AccountService struct {
	store  *storage.FileStorage
	logger *utils.Logger
	mutex  sync.Mutex
}

// NewAccountService 创建账号服务
func NewAccountService(store *storage.FileStorage) *AccountService {
	return &AccountService{
		store:  store,
		logger: utils.GetLogger(),
	}
}

// Connect 新建或覆盖一条连接
// OAuth的code+state交换由外部协作方完成，这里只收不透明令牌
func (s *AccountService) Connect(conn models.AccountConnection) error {
	if conn.Platform == "" || conn.Username == "" {
		return apperrors.NewValidationError("平台和用户名不能为空", nil)
	}
	if conn.Mode == "" {
		conn.Mode = models.ConnectionModeAPI
	}
	conn.ConnectedAt = time.Now()

	var err error
	if conn.AccessToken, err = utils.SealToken(conn.AccessToken); err != nil {
		return apperrors.NewStorageError("令牌加密失败", err)
	}
	if conn.RefreshToken, err = utils.SealToken(conn.RefreshToken); err != nil {
		return apperrors.NewStorageError("令牌加密失败", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	connections := s.loadFresh()

	replaced := false
	for i, existing := range connections {
		if existing.Platform == conn.Platform && existing.Username == conn.Username {
			connections[i] = conn
			replaced = true
			break
		}
	}
	if !replaced {
		connections = append(connections, conn)
	}

	return s.store.SaveEntry(AccountsEntry, connections)
}

// List 返回全部连接
func (s *AccountService) List() []models.AccountConnection {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.loadFresh()
}

// Get 查找指定平台和用户名的连接
func (s *AccountService) Get(platform, username string) (*models.AccountConnection, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, conn := range s.loadFresh() {
		if conn.Platform == platform && (username == "" || conn.Username == username) {
			var err error
			if conn.AccessToken, err = utils.OpenToken(conn.AccessToken); err != nil {
				return nil, apperrors.NewStorageError("令牌解密失败", err)
			}
			if conn.RefreshToken, err = utils.OpenToken(conn.RefreshToken); err != nil {
				return nil, apperrors.NewStorageError("令牌解密失败", err)
			}
			return &conn, nil
		}
	}
	return nil, apperrors.NewNotFoundError(
		fmt.Sprintf("未找到 %s 的账号连接", platform), nil)
}

// Disconnect 移除一条连接
func (s *AccountService) Disconnect(platform, username string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	connections := s.loadFresh()

	found := false
	updated := connections[:0]
	for _, conn := range connections {
		if conn.Platform == platform && conn.Username == username {
			found = true
			continue
		}
		updated = append(updated, conn)
	}

	if !found {
		return apperrors.NewNotFoundError(
			fmt.Sprintf("未找到 %s/%s 的账号连接", platform, username), nil)
	}

	return s.store.SaveEntry(AccountsEntry, updated)
}

// UpdateStats 更新平台侧统计快照
func (s *AccountService) UpdateStats(platform, username string, stats models.AccountStats) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	connections := s.loadFresh()
	for i, conn := range connections {
		if conn.Platform == platform && conn.Username == username {
			stats.FetchedAt = time.Now()
			connections[i].Stats = &stats
			return s.store.SaveEntry(AccountsEntry, connections)
		}
	}

	return apperrors.NewNotFoundError(
		fmt.Sprintf("未找到 %s/%s 的账号连接", platform, username), nil)
}

func (s *AccountService) loadFresh() []models.AccountConnection {
	var connections []models.AccountConnection
	if err := s.store.LoadEntryFresh(AccountsEntry, &connections); err != nil {
		if !apperrors.IsNotFoundError(err) {
			s.logger.Warnf("账号集合读取失败: %v", err)
		}
		return nil
	}
	return connections
}
