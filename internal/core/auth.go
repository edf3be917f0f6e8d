package core

import (
	"context"
	"errors"
	"fmt"

	"GoBooruDownloader/internal/config"
	"GoBooruDownloader/internal/model"
	"GoBooruDownloader/internal/network"
)

// Auth は、資格情報をサーバーのプロフィールエンドポイントで検証し、
// 成功すれば以後のリクエストにBasic認証を付与し、ユーザーのブラックリストをフィルタに加えます。
// creds が nil の場合は何もしません。
func (e *PostExtractor) Auth(ctx context.Context, creds *config.Credentials) error {
	if creds == nil {
		return nil
	}

	reqURL, err := e.api.ProfileURL(e.server, creds.Username)
	if err != nil {
		return err
	}

	basic := &network.BasicAuth{Username: creds.Username, Password: creds.APIKey}
	body, err := e.client.Get(ctx, reqURL, basic)
	if err != nil {
		var httpErr *network.HTTPError
		if errors.As(err, &httpErr) && httpErr.IsAuthFailure() {
			return fmt.Errorf("%w (server=%s, user=%s): %v", model.ErrAuthentication, e.server.Name, creds.Username, httpErr)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &model.ConnectionError{URL: reqURL, Err: err}
	}

	userTags, err := e.api.ParseProfile(body)
	if err != nil {
		return fmt.Errorf("プロフィールの解析に失敗しました (server=%s, user=%s): %w", e.server.Name, creds.Username, err)
	}

	e.auth = basic
	e.userTags = append(userTags, creds.BlacklistedTags...)
	e.authState = Authenticated
	e.logger.Printf("INFO: %s として認証しました (ブラックリスト %d件)。", creds.Username, len(e.userTags))
	return nil
}
