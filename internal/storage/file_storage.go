// internal/storage/file_storage.go
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	apperrors "github.com/Corphon/CreatorStudioMCP/internal/errors"
)

// DefaultQuotaBytes 单个命名条目的默认配额
// 模拟浏览器本地存储的配额限制：超限写入以存储错误失败，由调用方决定是否吞掉
const DefaultQuotaBytes = 5 * 1024 * 1024

// FileStorage 以命名条目为单位的本地持久化存储
// 每个条目是一个JSON文件，写入原子化（临时文件+重命名），带配额检查
type FileStorage struct {
	BaseDir    string
	QuotaBytes int

	// 并发控制
	entryLocks sync.Map // 条目级别锁 name -> *sync.RWMutex

	// 简单缓存
	cache       map[string]*CacheEntry
	cacheMutex  sync.RWMutex
	cacheExpiry time.Duration
}

// CacheEntry 缓存条目
type CacheEntry struct {
	Data      []byte
	Timestamp time.Time
}

// NewFileStorage 创建文件存储服务
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}

	return &FileStorage{
		BaseDir:     baseDir,
		QuotaBytes:  DefaultQuotaBytes,
		cache:       make(map[string]*CacheEntry),
		cacheExpiry: 5 * time.Minute,
	}, nil
}

// 获取条目锁
func (fs *FileStorage) getEntryLock(name string) *sync.RWMutex {
	value, _ := fs.entryLocks.LoadOrStore(name, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

func (fs *FileStorage) entryPath(name string) string {
	if !strings.HasSuffix(name, ".json") {
		name += ".json"
	}
	return filepath.Join(fs.BaseDir, name)
}

// SaveEntry 序列化并原子写入一个命名条目
// 超出配额返回存储错误，不写任何字节
func (fs *FileStorage) SaveEntry(name string, data interface{}) error {
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return apperrors.NewStorageError("序列化条目失败", err)
	}

	if fs.QuotaBytes > 0 && len(content) > fs.QuotaBytes {
		return apperrors.NewStorageError(
			fmt.Sprintf("条目超出存储配额: %d > %d", len(content), fs.QuotaBytes), nil)
	}

	fullPath := fs.entryPath(name)

	lock := fs.getEntryLock(name)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return apperrors.NewStorageError("创建存储目录失败", err)
	}

	// 原子性文件写入
	tempPath := fullPath + ".tmp"

	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return apperrors.NewStorageError("保存临时文件失败", err)
	}

	if err := os.Rename(tempPath, fullPath); err != nil {
		os.Remove(tempPath)
		return apperrors.NewStorageError("保存条目失败", err)
	}

	fs.invalidateCache(name)

	return nil
}

// LoadEntry 读取并解析一个命名条目
func (fs *FileStorage) LoadEntry(name string, v interface{}) error {
	content, err := fs.loadRaw(name)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(content, v); err != nil {
		return apperrors.NewStorageError("解析条目失败", err)
	}

	return nil
}

func (fs *FileStorage) loadRaw(name string) ([]byte, error) {
	// 检查缓存
	fs.cacheMutex.RLock()
	if entry, exists := fs.cache[name]; exists {
		if time.Since(entry.Timestamp) < fs.cacheExpiry {
			fs.cacheMutex.RUnlock()
			return entry.Data, nil
		}
	}
	fs.cacheMutex.RUnlock()

	lock := fs.getEntryLock(name)
	lock.RLock()
	defer lock.RUnlock()

	content, err := os.ReadFile(fs.entryPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("条目不存在: %s", name), err)
		}
		return nil, apperrors.NewStorageError("读取条目失败", err)
	}

	fs.updateCache(name, content)

	return content, nil
}

// LoadEntryFresh 跳过缓存直接读取最新快照
// 读-改-写序列在写入前必须用它拿到最新状态，避免覆盖其他进程的保存
func (fs *FileStorage) LoadEntryFresh(name string, v interface{}) error {
	fs.invalidateCache(name)
	return fs.LoadEntry(name, v)
}

// EntryExists 检查条目是否存在
func (fs *FileStorage) EntryExists(name string) bool {
	_, err := os.Stat(fs.entryPath(name))
	return err == nil
}

// DeleteEntry 删除一个命名条目
func (fs *FileStorage) DeleteEntry(name string) error {
	lock := fs.getEntryLock(name)
	lock.Lock()
	defer lock.Unlock()

	fullPath := fs.entryPath(name)
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return apperrors.NewNotFoundError(fmt.Sprintf("条目不存在: %s", name), err)
	}

	if err := os.Remove(fullPath); err != nil {
		return apperrors.NewStorageError("删除条目失败", err)
	}

	fs.invalidateCache(name)

	return nil
}

// ListEntries 列出所有条目名
func (fs *FileStorage) ListEntries() ([]string, error) {
	entries, err := os.ReadDir(fs.BaseDir)
	if err != nil {
		return nil, apperrors.NewStorageError("读取存储目录失败", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}

	return names, nil
}

// 缓存管理
func (fs *FileStorage) updateCache(name string, data []byte) {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	fs.cache[name] = &CacheEntry{
		Data:      data,
		Timestamp: time.Now(),
	}
}

// invalidateCache 清除指定条目的缓存
func (fs *FileStorage) invalidateCache(name string) {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	delete(fs.cache, name)
}
