package handler

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/poethaven/internal/metrics"
	"github.com/hitoshi/poethaven/internal/middleware"
	"github.com/hitoshi/poethaven/internal/upload"
)

// HealthChecker はDB接続の死活確認に使うインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     middleware.Authenticator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	TrustProxyHeaders bool
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// アップロード
	UploadDir     string
	UploadMaxSize int64

	// サービス
	AuthService AuthServiceInterface
	PostService PostServiceInterface
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → (ルート別) RateLimit(Auth) / Auth → RateLimit(General)
//
// APIルートはルート直下と/api配下の両方に登録する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	if deps.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(loggerOrDefault(deps.Logger), deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.NotFound(middleware.WriteNotFound)
	r.MethodNotAllowed(middleware.WriteMethodNotAllowed)

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	if deps.UploadDir != "" {
		r.Handle(upload.PublicPrefix+"*", http.StripPrefix(upload.PublicPrefix, uploadFileServer(deps.UploadDir)))
	}

	api := apiRoutes(deps)
	r.Group(api)
	r.Route("/api", api)

	return r
}

// apiRoutes は認証・投稿・ユーザーのルートを登録する関数を返す。
func apiRoutes(deps *RouterDeps) func(r chi.Router) {
	authHandler := NewAuthHandler(deps.AuthService, deps.UploadMaxSize)
	postHandler := NewPostHandler(deps.PostService, deps.UploadMaxSize)
	userHandler := NewUserHandler(deps.UserService, deps.UploadMaxSize)

	authLimit, generalLimit := passThrough, passThrough
	if deps.RateLimiter != nil {
		authLimit = deps.RateLimiter.AuthMiddleware()
		generalLimit = deps.RateLimiter.GeneralMiddleware()
	}

	return func(r chi.Router) {
		// 登録・ログイン（IP単位のレート制限）
		r.Group(func(r chi.Router) {
			r.Use(authLimit)
			r.Post("/auth/register", authHandler.Register)
			r.Post("/auth/login", authHandler.Login)
		})

		// 認証不要の参照系
		r.Group(func(r chi.Router) {
			r.Use(generalLimit)
			r.Get("/posts", postHandler.List)
			r.Get("/posts/{id}", postHandler.Get)
			r.Get("/users/{id}", userHandler.Get)
		})

		// 認証が必要なルート
		// ミドルウェアスタック: Auth → RateLimit(General)
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthMiddleware(deps.Authenticator))
			r.Use(generalLimit)
			r.Get("/auth/me", authHandler.Me)
			r.Get("/posts/user/{userId}", postHandler.ListByUser)
			r.Post("/posts", postHandler.Create)
			r.Put("/users/{id}", userHandler.Update)
		})
	}
}

// healthHandler はDBへのPingが成功すれば200、失敗すれば503を返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// uploadFileServer はアップロード済みファイルを配信する。
// ディレクトリ一覧と書き込み途中の一時ファイル（先頭が"."）は返さない。
func uploadFileServer(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean("/" + r.URL.Path)
		if name == "/" || strings.HasSuffix(r.URL.Path, "/") || strings.HasPrefix(path.Base(name), ".") {
			middleware.WriteNotFound(w, r)
			return
		}
		info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(name)))
		if err != nil || !info.Mode().IsRegular() {
			middleware.WriteNotFound(w, r)
			return
		}
		fs.ServeHTTP(w, r)
	})
}

func passThrough(next http.Handler) http.Handler { return next }

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
