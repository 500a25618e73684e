package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/ca-srg/copilot-exporter/domain"
	"github.com/ca-srg/copilot-exporter/domain/repository"
	"github.com/ca-srg/copilot-exporter/infrastructure/config"
)

// JSONConfigRepository は JSON形式の設定ファイルを読み込むリポジトリ実装
type JSONConfigRepository struct {
	configFile string
}

// NewJSONConfigRepository は新しい JSONConfigRepository を作成する。
// path が空の場合は ~/.config/copilot-exporter/config.json を使う
func NewJSONConfigRepository(path string) repository.ConfigRepository {
	if path == "" {
		homeDir, _ := os.UserHomeDir()
		path = filepath.Join(homeDir, ".config", "copilot-exporter", "config.json")
	}
	return &JSONConfigRepository{configFile: path}
}

// Exists は設定ファイルが存在するかどうかを確認する
func (r *JSONConfigRepository) Exists() (bool, error) {
	_, err := os.Stat(r.configFile)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, domain.ErrFileOperationWithCause("stat config", r.configFile, err)
}

// LoadInto は設定ファイルの内容を cfg に上書きする
func (r *JSONConfigRepository) LoadInto(cfg *config.AppConfig) (bool, error) {
	if cfg == nil {
		return false, domain.ErrInvalidInput("config", "must not be nil")
	}

	exists, err := r.Exists()
	if err != nil {
		return false, err
	}
	if !exists {
		// ファイルが存在しない場合はデフォルト値のまま（エラーではない）
		return false, nil
	}

	// ファイルのセキュリティチェック
	if err := r.ensureSecurePermissions(r.configFile); err != nil {
		return false, err
	}

	data, err := os.ReadFile(r.configFile)
	if err != nil {
		return false, domain.ErrFileOperationWithCause("read config", r.configFile, err)
	}

	before := cfg.Snapshot()

	// デフォルト値の上にデコードするので、ファイルに無い項目はそのまま残る
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return false, domain.ErrDecode("config file "+r.configFile, err)
	}

	cfg.TrackChanges(before, config.SourceJSONFile)
	return true, nil
}

// GetConfigPath は設定ファイルのパスを返す
func (r *JSONConfigRepository) GetConfigPath() string {
	return r.configFile
}

// ensureSecurePermissions はトークンを含むファイルが他ユーザーから書き換えられないことを確認する
func (r *JSONConfigRepository) ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return domain.ErrFileOperationWithCause("stat config", path, err)
	}

	// group/other に書き込み権限があるファイルは拒否する
	if info.Mode().Perm()&0022 != 0 {
		return domain.ErrFilePermission(path, "not writable by group or others")
	}

	// 所有者の確認（Unix系OSのみ）
	return r.checkOwnership(info)
}

// checkOwnership はファイルの所有者が現在のユーザーまたは root であることを確認する
func (r *JSONConfigRepository) checkOwnership(info os.FileInfo) error {
	// システム固有の情報を取得
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		// Windows等、Unix系でないOSの場合はスキップ
		return nil
	}

	// コンテナでマウントされた設定ファイルは root 所有になる
	currentUID := uint32(os.Getuid())
	if stat.Uid != currentUID && stat.Uid != 0 {
		return domain.ErrFilePermission(r.configFile,
			fmt.Sprintf("owned by current user or root (uid: %d, expected: %d)", stat.Uid, currentUID))
	}

	return nil
}
