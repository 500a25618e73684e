package repository

import (
	"github.com/ca-srg/copilot-exporter/infrastructure/config"
)

// ConfigRepository は設定ファイルの読み込みを管理するリポジトリインターフェース
type ConfigRepository interface {
	// Exists は設定ファイルが存在するかどうかを確認する
	Exists() (bool, error)

	// LoadInto は設定ファイルの内容を cfg に上書きする。ファイルが無い場合は false を返す
	LoadInto(cfg *config.AppConfig) (bool, error)

	// GetConfigPath は設定ファイルのパスを返す
	GetConfigPath() string
}
