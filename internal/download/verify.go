package download

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"

	"GoBooruDownloader/internal/summary"
)

// Catalog は、検証対象のダウンロード記録の取得元です。summary.Store が実装します。
type Catalog interface {
	Downloads(ctx context.Context, server string) ([]summary.Record, error)
	Forget(ctx context.Context, server string, postID uint64) error
}

// VerificationResult は検証結果を表します。
type VerificationResult struct {
	TotalChecked  int
	TotalMissing  int
	TotalCorrupt  int
	TotalRepaired int
	TotalFailed   int
	Details       []string
}

// Verify は、記録済みファイルの存在とMD5を検証します。
// repair が true の場合、欠損・破損したファイルを削除して記録を消し、次回の実行で再取得させます。
func Verify(ctx context.Context, catalog Catalog, server string, repair bool, logger *log.Logger) (VerificationResult, error) {
	if logger == nil {
		logger = log.Default()
	}
	result := VerificationResult{}

	records, err := catalog.Downloads(ctx, server)
	if err != nil {
		return result, err
	}

	for _, rec := range records {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}
		result.TotalChecked++

		sum, err := hashFile(rec.Path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			result.TotalMissing++
			result.Details = append(result.Details, fmt.Sprintf("[%s/%d] ファイル消失: %s", rec.Server, rec.PostID, rec.Path))
			logger.Printf("WARNING: %s の投稿 %d のファイルが見つかりません (%s)", rec.Server, rec.PostID, rec.Path)
		case err != nil:
			result.TotalFailed++
			result.Details = append(result.Details, fmt.Sprintf("[%s/%d] 読み込み失敗: %v", rec.Server, rec.PostID, err))
			continue
		case sum != rec.MD5:
			result.TotalCorrupt++
			result.Details = append(result.Details, fmt.Sprintf("[%s/%d] 破損ファイル: %s", rec.Server, rec.PostID, rec.Path))
			logger.Printf("WARNING: %s の投稿 %d のMD5が一致しません (expected=%s, actual=%s)", rec.Server, rec.PostID, rec.MD5, sum)
		default:
			continue
		}

		if !repair {
			continue
		}
		if err := os.Remove(rec.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			result.TotalFailed++
			logger.Printf("ERROR: 破損ファイルの削除に失敗しました (%s): %v", rec.Path, err)
			continue
		}
		os.Remove(CaptionPath(rec.Path))
		if err := catalog.Forget(ctx, rec.Server, rec.PostID); err != nil {
			result.TotalFailed++
			logger.Printf("ERROR: %v", err)
			continue
		}
		result.TotalRepaired++
	}

	return result, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
