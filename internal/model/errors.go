package model

import (
	"errors"
	"fmt"
)

var (
	// ErrZeroPosts は、検索結果（フィルタ後）が0件だったことを示します。
	ErrZeroPosts = errors.New("投稿が見つかりませんでした")
	// ErrZeroPage は、ページ番号0が指定されたことを示します。
	ErrZeroPage = errors.New("ページ番号は1以上である必要があります")
	// ErrUnsupportedOperation は、サーバーが要求された操作のエンドポイントを持たないことを示します。
	ErrUnsupportedOperation = errors.New("このサーバーではサポートされていない操作です")
	// ErrAuthentication は、認証情報がサーバーに拒否されたことを示します。
	ErrAuthentication = errors.New("認証に失敗しました")
	// ErrPostMap は、単一投稿のマッピングに失敗したことを示します。
	ErrPostMap = errors.New("投稿のマッピングに失敗しました")
)

// ConnectionError は、ネットワーク層での失敗を表します。
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("接続エラー (url=%s): %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// DeserializeError は、サーバーの応答が想定外の形式だったことを表します。
type DeserializeError struct {
	Site   string
	Detail string // 応答本文の要約（HTMLエラーページのタイトルなど）
	Err    error
}

func (e *DeserializeError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s の応答を解析できませんでした (%s): %v", e.Site, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s の応答を解析できませんでした: %v", e.Site, e.Err)
}

func (e *DeserializeError) Unwrap() error { return e.Err }

// MissingFieldError は、単一投稿に必須フィールドが欠けていたことを表します。
type MissingFieldError struct {
	Site   string
	Field  string
	PostID uint64
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s の投稿 %d に必須フィールド '%s' がありません", e.Site, e.PostID, e.Field)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrPostMap }
