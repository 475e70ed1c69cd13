package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config 聚合服务启动需要的关键配置。
type Config struct {
	HTTPPort           string
	StorageDir         string
	MediaBaseURL       string // 本地存储对外暴露的 URL 前缀
	MaxUploadSize      int64
	CORSAllowedOrigins []string
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	ShutdownTimeout    time.Duration
	DBDriver           string // "postgres" 或 "memory"（仅开发用，数据不落盘）
	DBHost             string
	DBPort             int
	DBUser             string
	DBPassword         string
	DBName             string
	DBSSLMode          string
	// 日志配置
	LogLevel  string
	LogFormat string // "json" 或 "text"
	// 鉴权配置
	AuthEnabled bool     // 是否启用鉴权
	AuthMode    string   // "apikey" 或 "jwt"
	APIKeys     []string // 有效的 API Keys，可写成 name:secret 以指定活动流中的 actor
	JWTSecret   string   // HS256 共享密钥
	JWKSURL     string   // RS256/ES256 公钥地址
	// 存储配置
	StorageDriver string // "local" 或 "s3"
	S3Endpoint    string // S3/MinIO 端点，不含协议
	S3AccessKey   string
	S3SecretKey   string
	S3Bucket      string
	S3Region      string
	S3UseSSL      bool // 是否使用 HTTPS
	S3PathStyle   bool // 是否使用路径风格访问（MinIO 需要设为 true）
	// 定时清理
	CleanupSchedule string // cron 表达式
	CleanupTimezone string

	Gallery Gallery
}

// Gallery 是相册业务相关的配置，可以被 GALLERY_CONFIG 指向的 YAML 文件覆盖。
type Gallery struct {
	PhotosPerPage     int               `yaml:"photos_per_page" validate:"gt=0"`
	PageParam         string            `yaml:"page_param" validate:"required"`
	AllowedExtensions []string          `yaml:"allowed_extensions" validate:"min=1,dive,required"`
	PhotoDir          string            `yaml:"photo_dir" validate:"required"`
	ThumbnailDir      string            `yaml:"thumbnail_dir" validate:"required"`
	ThumbnailSizes    map[string]string `yaml:"thumbnail_sizes" validate:"min=1,dive,keys,required,endkeys,required"`
	CleanupTargets    []CleanupTarget   `yaml:"cleanup_targets" validate:"dive"`
	// MaxArchiveSize 限制单个 zip 解压后的总字节数，单个成员还受 MAX_UPLOAD_SIZE 限制。
	MaxArchiveSize int64 `yaml:"max_archive_size" validate:"gt=0"`
}

// CleanupTarget 描述一个需要回收孤儿文件的 (模型, 字段, 目录)。
type CleanupTarget struct {
	Model     string `yaml:"model" validate:"required"`
	Field     string `yaml:"field" validate:"required"`
	Directory string `yaml:"directory" validate:"required"`
}

// DefaultGallery 返回内置的相册配置。
func DefaultGallery() Gallery {
	return Gallery{
		PhotosPerPage:     50,
		PageParam:         "p",
		AllowedExtensions: []string{"zip", "bmp", "raw", "jpg", "jpeg", "png", "gif", "tiff"},
		PhotoDir:          "photos/photo",
		ThumbnailDir:      "photos/thumbnail",
		ThumbnailSizes: map[string]string{
			"thumb":  "200x200-crop",
			"medium": "1024x1024-fit",
		},
		CleanupTargets: []CleanupTarget{
			{Model: "photo", Field: "file", Directory: "photos/photo"},
			{Model: "thumbnail", Field: "file", Directory: "photos/thumbnail"},
		},
		MaxArchiveSize: 1 << 30,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load 从环境变量加载配置，并提供默认值。
func Load() (*Config, error) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	storage := os.Getenv("STORAGE_DIR")
	if storage == "" {
		storage = "./data"
	}

	if err := ensureDir(storage); err != nil {
		return nil, fmt.Errorf("确保存储目录失败: %w", err)
	}

	corsOrigins := parseList(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"http://localhost:5173"}
	}

	rateLimitRequests, err := parseIntEnv("RATE_LIMIT_REQUESTS", 60)
	if err != nil {
		return nil, err
	}

	rateLimitWindow, err := parseDurationEnv("RATE_LIMIT_WINDOW", time.Minute)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := parseDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	dbPort, err := parseIntEnv("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}

	maxUpload, err := parseIntEnv("MAX_UPLOAD_SIZE", 200<<20)
	if err != nil {
		return nil, err
	}

	// 鉴权配置
	authEnabled := parseBoolEnv("AUTH_ENABLED", true)
	apiKeys := parseList(os.Getenv("API_KEYS"))
	if len(apiKeys) == 0 {
		// 开发环境默认 key
		apiKeys = []string{"dev-api-key-123456"}
	}

	gallery := DefaultGallery()
	gallery.PhotosPerPage, err = parseIntEnv("PHOTOS_PER_PAGE", gallery.PhotosPerPage)
	if err != nil {
		return nil, err
	}
	if path := os.Getenv("GALLERY_CONFIG"); path != "" {
		if err := gallery.overlay(path); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		HTTPPort:           port,
		StorageDir:         storage,
		MediaBaseURL:       envOrDefault("MEDIA_BASE_URL", "/media"),
		MaxUploadSize:      int64(maxUpload),
		CORSAllowedOrigins: corsOrigins,
		RateLimitRequests:  rateLimitRequests,
		RateLimitWindow:    rateLimitWindow,
		ShutdownTimeout:    shutdownTimeout,
		DBDriver:           strings.ToLower(envOrDefault("DB_DRIVER", "postgres")),
		DBHost:             envOrDefault("DB_HOST", "127.0.0.1"),
		DBPort:             dbPort,
		DBUser:             envOrDefault("DB_USER", "gallery"),
		DBPassword:         envOrDefault("DB_PASSWORD", "gallery"),
		DBName:             envOrDefault("DB_NAME", "gallery"),
		DBSSLMode:          envOrDefault("DB_SSL_MODE", "disable"),
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
		LogFormat:          envOrDefault("LOG_FORMAT", "json"),
		AuthEnabled:        authEnabled,
		AuthMode:           strings.ToLower(envOrDefault("AUTH_MODE", "apikey")),
		APIKeys:            apiKeys,
		JWTSecret:          os.Getenv("JWT_SECRET"),
		JWKSURL:            os.Getenv("JWKS_URL"),
		StorageDriver:      envOrDefault("STORAGE_DRIVER", "local"),
		S3Endpoint:         envOrDefault("S3_ENDPOINT", "localhost:9000"),
		S3AccessKey:        envOrDefault("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:        envOrDefault("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:           envOrDefault("S3_BUCKET", "gallery"),
		S3Region:           envOrDefault("S3_REGION", "us-east-1"),
		S3UseSSL:           parseBoolEnv("S3_USE_SSL", false),
		S3PathStyle:        parseBoolEnv("S3_PATH_STYLE", true),
		CleanupSchedule:    envOrDefault("CLEANUP_SCHEDULE", "0 3 * * *"),
		CleanupTimezone:    envOrDefault("CLEANUP_TIMEZONE", "UTC"),
		Gallery:            gallery,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查枚举类配置和相册配置是否合法。
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "", "postgres", "memory":
	default:
		return fmt.Errorf("不支持的数据库驱动: %s", c.DBDriver)
	}
	switch c.StorageDriver {
	case "local", "s3":
	default:
		return fmt.Errorf("不支持的存储驱动: %s", c.StorageDriver)
	}
	if c.AuthEnabled {
		switch c.AuthMode {
		case "apikey":
		case "jwt":
			if c.JWTSecret == "" && c.JWKSURL == "" {
				return fmt.Errorf("AUTH_MODE=jwt 需要 JWT_SECRET 或 JWKS_URL")
			}
		default:
			return fmt.Errorf("不支持的鉴权模式: %s", c.AuthMode)
		}
	}
	if c.CleanupSchedule != "" {
		if _, err := cron.ParseStandard(c.CleanupSchedule); err != nil {
			return fmt.Errorf("CLEANUP_SCHEDULE 无效: %w", err)
		}
	}
	if err := validate.Struct(c.Gallery); err != nil {
		return fmt.Errorf("相册配置无效: %w", err)
	}
	return nil
}

// overlay 读取 YAML 文件覆盖相册配置，文件中缺省的字段保持原值。
func (g *Gallery) overlay(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取 %s 失败: %w", path, err)
	}
	var file Gallery
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("解析 %s 失败: %w", path, err)
	}

	if file.PhotosPerPage != 0 {
		g.PhotosPerPage = file.PhotosPerPage
	}
	if file.PageParam != "" {
		g.PageParam = file.PageParam
	}
	if len(file.AllowedExtensions) > 0 {
		exts := make([]string, 0, len(file.AllowedExtensions))
		for _, ext := range file.AllowedExtensions {
			exts = append(exts, strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), ".")))
		}
		g.AllowedExtensions = exts
	}
	if file.PhotoDir != "" {
		g.PhotoDir = file.PhotoDir
	}
	if file.ThumbnailDir != "" {
		g.ThumbnailDir = file.ThumbnailDir
	}
	for name, geometry := range file.ThumbnailSizes {
		g.ThumbnailSizes[name] = geometry
	}
	if file.CleanupTargets != nil {
		g.CleanupTargets = file.CleanupTargets
	}
	if file.MaxArchiveSize != 0 {
		g.MaxArchiveSize = file.MaxArchiveSize
	}
	return nil
}

func ensureDir(path string) error {
	info, err := os.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("路径 %s 已存在但不是目录", path)
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(path, 0o755)
	}

	return err
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}

	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("解析 %s 失败: %w", key, err)
	}
	if value <= 0 {
		return defaultValue, nil
	}
	return value, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}

	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("解析 %s 失败: %w", key, err)
	}
	if value <= 0 {
		return defaultValue, nil
	}
	return value, nil
}

func parseBoolEnv(key string, defaultValue bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	lower := strings.ToLower(raw)
	return lower == "true" || lower == "1" || lower == "yes"
}

// PostgresDSN 生成标准 postgres:// 连接串，供数据访问层直接使用。
func (c *Config) PostgresDSN() string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Host:   fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:   c.DBName,
	}

	q := url.Values{}
	if c.DBSSLMode != "" {
		q.Set("sslmode", c.DBSSLMode)
	}
	u.RawQuery = q.Encode()

	return u.String()
}

func envOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
