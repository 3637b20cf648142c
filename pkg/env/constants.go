package env

import "github.com/wpstarter/wpstarter/pkg/filters"

// TablePrefixVar holds the database table prefix. WordPress keeps it in a
// global variable, so it never becomes a constant.
const TablePrefixVar = "DB_TABLE_PREFIX"

// EnvironmentTypeConst is always defined by DefineConstants.
const EnvironmentTypeConst = "WP_ENVIRONMENT_TYPE"

// WordPressConstants maps every WordPress constant the bridge knows to the
// coercion its value goes through.
var WordPressConstants = map[string]filters.Kind{
	"ABSPATH":                        filters.KindString,
	"ADMIN_COOKIE_PATH":              filters.KindString,
	"ALLOW_UNFILTERED_UPLOADS":       filters.KindBool,
	"ALTERNATE_WP_CRON":              filters.KindBool,
	"AUTH_COOKIE":                    filters.KindString,
	"AUTH_KEY":                       filters.KindString,
	"AUTH_SALT":                      filters.KindString,
	"AUTOMATIC_UPDATER_DISABLED":     filters.KindBool,
	"AUTOSAVE_INTERVAL":              filters.KindInt,
	"BLOG_ID_CURRENT_SITE":           filters.KindInt,
	"COMPRESS_CSS":                   filters.KindBool,
	"COMPRESS_SCRIPTS":               filters.KindBool,
	"CONCATENATE_SCRIPTS":            filters.KindBool,
	"COOKIE_DOMAIN":                  filters.KindString,
	"COOKIEHASH":                     filters.KindString,
	"COOKIEPATH":                     filters.KindString,
	"CORE_UPGRADE_SKIP_NEW_BUNDLED":  filters.KindBool,
	"CUSTOM_USER_META_TABLE":         filters.KindString,
	"CUSTOM_USER_TABLE":              filters.KindString,
	"DB_CHARSET":                     filters.KindString,
	"DB_COLLATE":                     filters.KindString,
	"DB_HOST":                        filters.KindString,
	"DB_NAME":                        filters.KindString,
	"DB_PASSWORD":                    filters.KindString,
	TablePrefixVar:                   filters.KindTablePrefix,
	"DB_USER":                        filters.KindString,
	"DIEONDBERROR":                   filters.KindBool,
	"DISABLE_WP_CRON":                filters.KindBool,
	"DISALLOW_FILE_EDIT":             filters.KindBool,
	"DISALLOW_FILE_MODS":             filters.KindBool,
	"DISALLOW_UNFILTERED_HTML":       filters.KindBool,
	"DOMAIN_CURRENT_SITE":            filters.KindString,
	"EMPTY_TRASH_DAYS":               filters.KindInt,
	"ENFORCE_GZIP":                   filters.KindBool,
	"ERRORLOGFILE":                   filters.KindString,
	"FORCE_SSL_ADMIN":                filters.KindBool,
	"FORCE_SSL_LOGIN":                filters.KindBool,
	"FS_CHMOD_DIR":                   filters.KindOctalMode,
	"FS_CHMOD_FILE":                  filters.KindOctalMode,
	"FS_CONNECT_TIMEOUT":             filters.KindInt,
	"FS_METHOD":                      filters.KindString,
	"FS_TIMEOUT":                     filters.KindInt,
	"FTP_BASE":                       filters.KindString,
	"FTP_CONTENT_DIR":                filters.KindString,
	"FTP_HOST":                       filters.KindString,
	"FTP_LANG_DIR":                   filters.KindString,
	"FTP_PASS":                       filters.KindString,
	"FTP_PLUGIN_DIR":                 filters.KindString,
	"FTP_PRIKEY":                     filters.KindString,
	"FTP_PUBKEY":                     filters.KindString,
	"FTP_SSH":                        filters.KindBool,
	"FTP_SSL":                        filters.KindBool,
	"FTP_USER":                       filters.KindString,
	"IMAGE_EDIT_OVERWRITE":           filters.KindBool,
	"LOGGED_IN_COOKIE":               filters.KindString,
	"LOGGED_IN_KEY":                  filters.KindString,
	"LOGGED_IN_SALT":                 filters.KindString,
	"MEDIA_TRASH":                    filters.KindBool,
	"MULTISITE":                      filters.KindBool,
	"NOBLOGREDIRECT":                 filters.KindString,
	"NONCE_KEY":                      filters.KindString,
	"NONCE_SALT":                     filters.KindString,
	"PASS_COOKIE":                    filters.KindString,
	"PATH_CURRENT_SITE":              filters.KindString,
	"PLUGINS_COOKIE_PATH":            filters.KindString,
	"SAVEQUERIES":                    filters.KindBool,
	"SCRIPT_DEBUG":                   filters.KindBool,
	"SECURE_AUTH_COOKIE":             filters.KindString,
	"SECURE_AUTH_KEY":                filters.KindString,
	"SECURE_AUTH_SALT":               filters.KindString,
	"SITE_ID_CURRENT_SITE":           filters.KindInt,
	"SITECOOKIEPATH":                 filters.KindString,
	"STYLESHEETPATH":                 filters.KindString,
	"SUBDOMAIN_INSTALL":              filters.KindBool,
	"TEMPLATEPATH":                   filters.KindString,
	"TEST_COOKIE":                    filters.KindString,
	"UPLOADBLOGSDIR":                 filters.KindString,
	"UPLOADS":                        filters.KindString,
	"USER_COOKIE":                    filters.KindString,
	"WP_ACCESSIBLE_HOSTS":            filters.KindString,
	"WP_ALLOW_MULTISITE":             filters.KindBool,
	"WP_ALLOW_REPAIR":                filters.KindBool,
	"WP_AUTO_UPDATE_CORE":            filters.KindStringOrBool,
	"WP_CACHE":                       filters.KindBool,
	"WP_CONTENT_DIR":                 filters.KindString,
	"WP_CONTENT_URL":                 filters.KindString,
	"WP_CRON_LOCK_TIMEOUT":           filters.KindInt,
	"WP_DEBUG":                       filters.KindBool,
	"WP_DEBUG_DISPLAY":               filters.KindBool,
	"WP_DEBUG_LOG":                   filters.KindStringOrBool,
	"WP_DEFAULT_THEME":               filters.KindString,
	"WP_DEVELOPMENT_MODE":            filters.KindString,
	"WP_DISABLE_FATAL_ERROR_HANDLER": filters.KindBool,
	EnvironmentTypeConst:             filters.KindString,
	"WP_HOME":                        filters.KindString,
	"WP_HTTP_BLOCK_EXTERNAL":         filters.KindBool,
	"WP_LANG_DIR":                    filters.KindString,
	"WP_MAX_MEMORY_LIMIT":            filters.KindString,
	"WP_MEMORY_LIMIT":                filters.KindString,
	"WP_PLUGIN_DIR":                  filters.KindString,
	"WP_PLUGIN_URL":                  filters.KindString,
	"WP_POST_REVISIONS":              filters.KindIntOrBool,
	"WP_PROXY_BYPASS_HOSTS":          filters.KindString,
	"WP_PROXY_HOST":                  filters.KindString,
	"WP_PROXY_PASSWORD":              filters.KindString,
	"WP_PROXY_PORT":                  filters.KindInt,
	"WP_PROXY_USERNAME":              filters.KindString,
	"WP_SITEURL":                     filters.KindString,
	"WP_TEMP_DIR":                    filters.KindString,
	"WPLANG":                         filters.KindString,
	"WPMU_ACCEL_REDIRECT":            filters.KindBool,
	"WPMU_PLUGIN_DIR":                filters.KindString,
	"WPMU_PLUGIN_URL":                filters.KindString,
	"WPMU_SENDFILE":                  filters.KindBool,
}

// IsWordPressConstant reports whether name is in WordPressConstants.
func IsWordPressConstant(name string) bool {
	_, ok := WordPressConstants[name]
	return ok
}
