package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"GoBooruDownloader/internal/config"
	"GoBooruDownloader/internal/download"
	"GoBooruDownloader/internal/model"
	"GoBooruDownloader/internal/summary"

	"github.com/robfig/cron/v3"
)

// listFlag は、カンマ区切りまたは複数回指定できる文字列リストのフラグです。
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			*l = append(*l, s)
		}
	}
	return nil
}

// コマンドラインフラグ
var (
	configFile     = flag.String("config", "gbd.toml", "設定ファイルのパス")
	envFile        = flag.String("env", ".env", "資格情報を読み込む .env ファイルのパス")
	serverName     = flag.String("server", "danbooru", "対象サーバー名")
	ratingFlags    listFlag
	excludeFlags   listFlag
	postIDFlags    listFlag
	noBlacklist    = flag.Bool("no-blacklist", false, "タグによるブラックリストを無効にします")
	mapVideos      = flag.Bool("map-videos", false, "Danbooruのうごイラを変換済みwebmとして取得します")
	ignoreAnimated = flag.Bool("ignore-animated", false, "動画とアニメーションを除外します")
	forceExt       = flag.String("force-ext", "", "指定した拡張子の投稿のみを取得します (例: png)")
	limit          = flag.Int("limit", 0, "取得する投稿数の上限 (0は無制限)")
	startPage      = flag.Int("start-page", 1, "検索を開始するページ番号 (1始まり)")
	poolID         = flag.Uint64("pool", 0, "ダウンロードするプールのID")
	latest         = flag.Bool("latest", false, "プールを最新の投稿から順に取得します")
	asyncMode      = flag.Bool("async", false, "検索とダウンロードを並行して行います")
	useAuth        = flag.Bool("auth", false, "環境変数の資格情報で認証します")
	outputDir      = flag.String("output", "", "保存先ディレクトリ (設定ファイルの値を上書き)")
	updateMode     = flag.Bool("update", false, "前回の実行以降の新しい投稿のみを取得します")
	verifyMode     = flag.Bool("verify", false, "ダウンロード済みファイルを検証します")
	repairMode     = flag.Bool("repair", false, "検証モード時に破損ファイルを削除して再取得対象にします")
	schedule       = flag.String("schedule", "", "cron形式の実行スケジュール (例: @hourly)。設定ファイルの値を上書き")
)

// ログファイル管理用
var logFile *os.File

func init() {
	flag.Var(&ratingFlags, "rating", "許可するレーティング (s,q,e をカンマ区切りまたは複数回指定)")
	flag.Var(&excludeFlags, "exclude", "追加で除外するタグ (カンマ区切りまたは複数回指定)")
	flag.Var(&postIDFlags, "posts", "ID指定でダウンロードする投稿 (カンマ区切り)")
}

// main関数はGBDのエントリーポイントです。
func main() {
	flag.Parse()
	log.SetOutput(os.Stdout)

	cfg, err := config.LoadAndResolve(*configFile)
	if err != nil {
		log.Fatalf("FATAL: 設定ファイルの読み込みに失敗しました: %v", err)
	}
	setupLogger(cfg)
	defer func() {
		if logFile != nil {
			logFile.Close()
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *verifyMode {
		if err := runVerificationMode(ctx, cfg); err != nil {
			log.Printf("ERROR: 検証中にエラーが発生しました: %v", err)
			os.Exit(1)
		}
		return
	}

	opts, err := buildRunOptions(cfg)
	if err != nil {
		log.Printf("ERROR: %v", err)
		flag.Usage()
		os.Exit(2)
	}

	cronExpr := cfg.Schedule
	if *schedule != "" {
		cronExpr = *schedule
	}
	if cronExpr != "" {
		if err := runScheduled(ctx, cfg, opts, cronExpr); err != nil {
			log.Printf("ERROR: %v", err)
			os.Exit(1)
		}
		log.Println("INFO: スケジュール実行を終了しました。")
		return
	}

	if err := executeRun(ctx, cfg, opts); err != nil {
		log.Printf("ERROR: %s", describeError(err))
		os.Exit(1)
	}
}

// buildRunOptions は、フラグと設定から1回の実行条件を組み立てます。
func buildRunOptions(cfg *config.Config) (runOptions, error) {
	opts := runOptions{
		Server:           *serverName,
		Tags:             flag.Args(),
		Excluded:         excludeFlags,
		DisableBlacklist: *noBlacklist,
		MapVideos:        *mapVideos,
		IgnoreAnimated:   *ignoreAnimated,
		Limit:            *limit,
		StartPage:        *startPage,
		PoolID:           *poolID,
		Latest:           *latest,
		Async:            *asyncMode,
		Auth:             *useAuth,
		EnvFile:          *envFile,
		OutputDir:        cfg.Download.OutputDir,
		Update:           *updateMode,
	}
	if *outputDir != "" {
		opts.OutputDir = *outputDir
	}
	if opts.Limit < 0 {
		return opts, fmt.Errorf("-limit は0以上を指定してください (値: %d)", opts.Limit)
	}
	if opts.StartPage < 1 {
		return opts, fmt.Errorf("%w (-start-page=%d)", model.ErrZeroPage, opts.StartPage)
	}

	for _, r := range ratingFlags {
		rating := model.ParseRating(r)
		if rating == model.RatingUnknown && !strings.EqualFold(r, "unknown") && !strings.EqualFold(r, "u") {
			return opts, fmt.Errorf("不明なレーティング '%s' が指定されました", r)
		}
		opts.Ratings = append(opts.Ratings, rating)
	}

	if *forceExt != "" {
		opts.ForcedExtension = model.ParseExtension(*forceExt)
		if opts.ForcedExtension == model.ExtUnknown {
			return opts, fmt.Errorf("不明な拡張子 '%s' が指定されました", *forceExt)
		}
	}

	for _, s := range postIDFlags {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return opts, fmt.Errorf("投稿ID '%s' が不正です: %w", s, err)
		}
		opts.PostIDs = append(opts.PostIDs, id)
	}

	if len(opts.Tags) == 0 && opts.PoolID == 0 && len(opts.PostIDs) == 0 {
		return opts, errors.New("検索タグ、-pool、-posts のいずれかを指定してください")
	}
	return opts, nil
}

// runScheduled は、起動直後に1回実行した後、cronExpr に従って繰り返し実行します。
// 前回の実行が終わっていない場合、その回はスキップします。
func runScheduled(ctx context.Context, cfg *config.Config, opts runOptions, cronExpr string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log.Default()))))
	job := func() {
		if err := executeRun(ctx, cfg, opts); err != nil {
			log.Printf("ERROR: %s", describeError(err))
		}
	}
	if _, err := c.AddFunc(cronExpr, job); err != nil {
		return fmt.Errorf("スケジュール '%s' を解析できません: %w", cronExpr, err)
	}

	log.Printf("INFO: スケジュール実行を開始します (schedule=%s)", cronExpr)
	job()
	c.Start()

	<-ctx.Done()
	log.Println("終了シグナルを受信しました。実行中の処理の完了を待っています...")
	<-c.Stop().Done()
	return nil
}

func runVerificationMode(ctx context.Context, cfg *config.Config) error {
	log.Println("検証モードで起動します。")
	if *repairMode {
		log.Println("修復モード: 有効 (破損ファイルを削除し、次回の実行で再取得します)")
	}

	store, err := summary.Open(cfg.Download.SummaryDB)
	if err != nil {
		return err
	}
	defer store.Close()

	server := ""
	if isFlagSet("server") {
		server = *serverName
	}

	result, err := download.Verify(ctx, store, server, *repairMode, log.Default())
	if err != nil {
		return err
	}

	log.Println("========================================")
	log.Println("検証完了")
	log.Printf("チェック済みファイル数: %d", result.TotalChecked)
	log.Printf("欠損: %d / 破損: %d", result.TotalMissing, result.TotalCorrupt)
	if *repairMode {
		log.Printf("修復: %d / 失敗: %d", result.TotalRepaired, result.TotalFailed)
	}
	for _, detail := range result.Details {
		log.Println(detail)
	}
	log.Println("========================================")
	return nil
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// describeError は、エラーの種類ごとに利用者向けのメッセージを返します。
func describeError(err error) string {
	var connErr *model.ConnectionError
	var decodeErr *model.DeserializeError
	switch {
	case errors.Is(err, model.ErrZeroPosts):
		return fmt.Sprintf("投稿が見つかりませんでした。タグやフィルタ条件を見直してください。(%v)", err)
	case errors.Is(err, model.ErrUnsupportedOperation):
		return fmt.Sprintf("このサーバーでは要求された操作を利用できません。(%v)", err)
	case errors.Is(err, model.ErrAuthentication):
		return fmt.Sprintf("認証に失敗しました。ユーザー名とAPIキーを確認してください。(%v)", err)
	case errors.Is(err, model.ErrZeroPage):
		return "ページ番号は1以上を指定してください。"
	case errors.Is(err, context.Canceled):
		return "処理が中断されました。"
	case errors.As(err, &connErr):
		return fmt.Sprintf("サーバーとの通信に失敗しました。時間をおいて再試行してください。(%v)", connErr)
	case errors.As(err, &decodeErr):
		return fmt.Sprintf("サーバーの応答を解析できませんでした。(%v)", decodeErr)
	default:
		return err.Error()
	}
}

// setupLogger はログ出力先を設定します。
// config.EnableLogFile が true の場合、ファイルにも出力します。
func setupLogger(cfg *config.Config) {
	if !cfg.EnableLogFile {
		return
	}
	path := cfg.LogFilePath
	if path == "" {
		path = fmt.Sprintf("gbd_%s.log", time.Now().Format("2006-01-02"))
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("WARNING: ログファイルを開けませんでした: %v", err)
		return
	}
	logFile = f
	log.SetOutput(io.MultiWriter(os.Stdout, f))
	log.Printf("INFO: ログ出力をファイル '%s' に開始しました", path)
}
