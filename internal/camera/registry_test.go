package camera

import (
	"errors"
	"io"
	"log"
	"strings"
	"testing"
)

// testLogger はテスト出力を汚さないロガーを返す
func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// TestRegistryDefaultTypes は標準レジストリの登録内容をテストする
func TestRegistryDefaultTypes(t *testing.T) {
	r := DefaultRegistry(testLogger())

	types := r.ListTypes()
	if len(types) != 2 {
		t.Fatalf("登録済みタイプ数が2ではありません: %v", types)
	}
	// ListTypesはソート済み
	if types[0] != TypeIPCamera || types[1] != TypeMock {
		t.Errorf("登録済みタイプの一覧が想定と異なります: %v", types)
	}
}

// TestRegistryCreateUnknownType は未登録タイプのエラーをテストする
func TestRegistryCreateUnknownType(t *testing.T) {
	r := DefaultRegistry(testLogger())

	_, err := r.Create(Config{ID: 1, Type: "usb_camera"}, testLogger())
	if !errors.Is(err, ErrUnknownCameraType) {
		t.Fatalf("ErrUnknownCameraTypeが返されませんでした: %v", err)
	}
	// エラーには登録済みタイプの一覧が含まれる
	if !strings.Contains(err.Error(), TypeMock) {
		t.Errorf("エラーに登録済みタイプが含まれていません: %v", err)
	}
}

// TestRegistryCreateMock はモックカメラの作成をテストする
func TestRegistryCreateMock(t *testing.T) {
	r := DefaultRegistry(testLogger())

	cam, err := r.Create(Config{ID: 7, Type: TypeMock}, testLogger())
	if err != nil {
		t.Fatalf("モックカメラの作成に失敗: %v", err)
	}
	if cam.ID() != 7 {
		t.Errorf("カメラIDが一致しません: %d", cam.ID())
	}
	if cam.Type() != TypeMock {
		t.Errorf("カメラタイプが一致しません: %s", cam.Type())
	}
}

// TestRegistryUnregister は登録解除をテストする
func TestRegistryUnregister(t *testing.T) {
	r := DefaultRegistry(testLogger())

	if !r.Unregister(TypeMock) {
		t.Fatal("登録済みタイプの解除に失敗しました")
	}
	if r.Unregister(TypeMock) {
		t.Error("解除済みタイプの解除が成功してしまいました")
	}

	_, err := r.Create(Config{ID: 1, Type: TypeMock}, testLogger())
	if !errors.Is(err, ErrUnknownCameraType) {
		t.Errorf("解除後の作成がErrUnknownCameraTypeになりません: %v", err)
	}
}

// TestRegistryCreateAll は複数カメラの一括作成をテストする
func TestRegistryCreateAll(t *testing.T) {
	r := DefaultRegistry(testLogger())

	configs := []Config{
		{ID: 1, Type: TypeMock},
		{ID: 2, Type: TypeMock, Source: "solid"},
	}
	cams, err := r.CreateAll(configs, testLogger())
	if err != nil {
		t.Fatalf("一括作成に失敗: %v", err)
	}
	if len(cams) != 2 {
		t.Fatalf("作成されたカメラ数が2ではありません: %d", len(cams))
	}
	if cams[1] == nil || cams[2] == nil {
		t.Error("IDでカメラを引けません")
	}
}

// TestRegistryCreateAllDuplicateID はID重複の検出をテストする
func TestRegistryCreateAllDuplicateID(t *testing.T) {
	r := DefaultRegistry(testLogger())

	configs := []Config{
		{ID: 1, Type: TypeMock},
		{ID: 1, Type: TypeMock},
	}
	if _, err := r.CreateAll(configs, testLogger()); err == nil {
		t.Fatal("カメラIDの重複が検出されませんでした")
	}
}
