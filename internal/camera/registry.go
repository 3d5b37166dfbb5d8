package camera

import (
	"fmt"
	"log"
	"sort"
	"sync"
)

// Constructor はカメラの作成関数の型
type Constructor func(cfg Config, logger *log.Logger) (Camera, error)

// Registry はカメラタイプ名と作成関数のマッピングを管理する
//
// スケジューラーやコンポジターを具体的なカメラ実装から切り離すため、
// 設定ファイルのタイプ名から実行時にカメラを生成する。
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
	logger       *log.Logger
}

// NewRegistry は空のRegistryを作成する
func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		constructors: make(map[string]Constructor),
		logger:       logger,
	}
}

// DefaultRegistry は標準のカメラタイプを登録済みのRegistryを作成する
func DefaultRegistry(logger *log.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(TypeIPCamera, NewIPCamera)
	r.Register(TypeMock, NewMockCamera)
	return r
}

// Register はカメラタイプを登録する
// 既存タイプの上書きは許可されるが、警告ログを残す
func (r *Registry) Register(cameraType string, constructor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[cameraType]; exists {
		r.logger.Printf("警告: カメラタイプ %s を上書き登録します", cameraType)
	}

	r.constructors[cameraType] = constructor
	r.logger.Printf("カメラタイプを登録しました: %s", cameraType)
}

// Create は設定からカメラを作成する
// 未登録のタイプが指定された場合は登録済みタイプの一覧を含む
// ErrUnknownCameraType を返す
func (r *Registry) Create(cfg Config, logger *log.Logger) (Camera, error) {
	r.mu.RLock()
	constructor, exists := r.constructors[cfg.Type]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s (登録済みタイプ: %v)",
			ErrUnknownCameraType, cfg.Type, r.ListTypes())
	}

	r.logger.Printf("カメラを作成します: %s (id=%d)", cfg.Type, cfg.ID)

	cam, err := constructor(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("カメラ %s (id=%d) の作成に失敗: %w", cfg.Type, cfg.ID, err)
	}
	return cam, nil
}

// ListTypes は登録済みのカメラタイプ一覧をソート済みで返す
func (r *Registry) ListTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.constructors))
	for cameraType := range r.constructors {
		types = append(types, cameraType)
	}
	sort.Strings(types)
	return types
}

// Unregister はカメラタイプの登録を解除する
// 主にテストの独立性確保のために使用する
func (r *Registry) Unregister(cameraType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[cameraType]; !exists {
		return false
	}
	delete(r.constructors, cameraType)
	r.logger.Printf("カメラタイプの登録を解除しました: %s", cameraType)
	return true
}

// CreateAll は複数のカメラ設定からID→カメラのマップを作成する
// いずれかの作成に失敗した場合は作成済みのカメラを停止せずにエラーを返す
// （起動前の構成エラーとして扱い、呼び出し元でプロセスを終了する）
func (r *Registry) CreateAll(configs []Config, logger *log.Logger) (map[int]Camera, error) {
	cams := make(map[int]Camera, len(configs))
	for _, cfg := range configs {
		if _, exists := cams[cfg.ID]; exists {
			return nil, fmt.Errorf("カメラIDが重複しています: %d", cfg.ID)
		}
		cam, err := r.Create(cfg, logger)
		if err != nil {
			return nil, err
		}
		cams[cfg.ID] = cam
	}
	return cams, nil
}
