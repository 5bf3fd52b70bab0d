package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/tweet-relay/app/cfg"
	"github.com/lysyi3m/tweet-relay/app/database"
	"github.com/lysyi3m/tweet-relay/app/engine"
	"github.com/lysyi3m/tweet-relay/app/source"
	"github.com/lysyi3m/tweet-relay/app/tasks"
)

func NewHandler(repos engine.Repositories, replacements database.ReplacementRepository, runner tasks.Runner,
	scheduler tasks.TaskSchedulerInterface, verifier Verifier, fetchCap int) *Handler {
	return &Handler{
		repos:        repos,
		replacements: replacements,
		runner:       runner,
		scheduler:    scheduler,
		verifier:     verifier,
		fetchCap:     fetchCap,
	}
}

func (h *Handler) version() string {
	return cfg.GetVersion()
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"scheduler": h.scheduler.Stats(),
	}

	if accountCount, err := h.repos.Accounts.CountAccounts(c.Request.Context()); err == nil {
		health["accounts"] = accountCount
	} else {
		slog.Error("Database error", "operation", "count_accounts", "error", err)
		health["status"] = "degraded"
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := h.repos.Tweets.Stats(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "tweet_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	now := time.Now().In(time.Local)
	y, m, d := now.Date()
	postedToday, err := h.repos.Tweets.CountPostedSince(ctx, time.Date(y, m, d, 0, 0, 0, 0, now.Location()))
	if err != nil {
		slog.Error("Database error", "operation", "count_posted_today", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	settings, err := h.repos.Settings.GetSettings(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "get_settings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tweets": gin.H{
			"backlog": stats.Backlog,
			"queued":  stats.Queued,
			"posted":  stats.Posted,
		},
		"posted_today":   postedToday,
		"daily_quota":    settings.DailyQuota,
		"system_enabled": settings.SystemEnabled,
		"active_hours": gin.H{
			"start":  settings.ActiveHoursStart,
			"end":    settings.ActiveHoursEnd,
			"active": engine.WithinActiveHours(now, settings.ActiveHoursStart, settings.ActiveHoursEnd),
		},
		"scheduler": h.scheduler.Stats(),
	})
}

func (h *Handler) APIGetSettings(c *gin.Context) {
	values, err := h.settingsWithDefaults(c)
	if err != nil {
		slog.Error("Database error", "operation", "get_settings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": values})
}

// APIUpdateSettings validates every submitted key before storing any of them.
func (h *Handler) APIUpdateSettings(c *gin.Context) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body", "details": err.Error()})
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No settings provided"})
		return
	}

	updates := make(map[string]string, len(body))
	for key, raw := range body {
		if !database.IsKnownSetting(key) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown setting", "key": key})
			return
		}

		value := settingValue(raw)
		if !database.ValidateSetting(key, value) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid setting value", "key": key, "value": value})
			return
		}
		updates[key] = value
	}

	ctx := c.Request.Context()
	keys := make([]string, 0, len(updates))
	for key, value := range updates {
		if err := h.repos.Settings.SetSetting(ctx, key, value); err != nil {
			slog.Error("Database error", "operation", "set_setting", "key", key, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	if err := h.repos.Logs.AddLog(ctx, database.ActionSystem,
		fmt.Sprintf("Settings updated: %s", strings.Join(keys, ", ")), database.StatusInfo); err != nil {
		slog.Error("Failed to write activity log", "error", err)
	}

	values, err := h.settingsWithDefaults(c)
	if err != nil {
		slog.Error("Database error", "operation", "get_settings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": values, "updated": keys})
}

func (h *Handler) APIListLogs(c *gin.Context) {
	filter := database.LogFilter{Status: c.Query("status")}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		filter.Limit = limit
	}

	switch filter.Status {
	case "", database.StatusInfo, database.StatusSuccess, database.StatusError:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be one of info, success, error"})
		return
	}

	entries, err := h.repos.Logs.ListLogs(c.Request.Context(), filter)
	if err != nil {
		slog.Error("Database error", "operation", "list_logs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	logs := make([]logResponse, 0, len(entries))
	for _, entry := range entries {
		logs = append(logs, logResponse{
			ID:          entry.ID,
			Action:      entry.Action,
			Description: entry.Description,
			Status:      entry.Status,
			CreatedAt:   entry.CreatedAt.In(time.Local).Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":  logs,
		"total": len(logs),
	})
}

func (h *Handler) APIClearLogs(c *gin.Context) {
	if err := h.repos.Logs.ClearLogs(c.Request.Context()); err != nil {
		slog.Error("Database error", "operation", "clear_logs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) APISync(c *gin.Context) {
	h.enqueue(c, tasks.NewFetchAllTask(h.runner))
}

func (h *Handler) APIProcessDue(c *gin.Context) {
	h.enqueue(c, tasks.NewProcessDueTask(h.runner))
}

func (h *Handler) APIScheduleBatch(c *gin.Context) {
	count, ok := bindCount(c)
	if !ok {
		return
	}

	h.enqueue(c, tasks.NewScheduleBatchTask(h.runner, count))
}

func (h *Handler) APIListAccounts(c *gin.Context) {
	accounts, err := h.repos.Accounts.ListAccounts(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "list_accounts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := make([]accountResponse, 0, len(accounts))
	for _, account := range accounts {
		item := accountResponse{
			ID:          account.ID,
			Username:    account.Username,
			Name:        account.Name,
			Description: account.Description,
			Active:      account.Active,
			CreatedAt:   account.CreatedAt.In(time.Local).Format(time.RFC3339),
		}
		if account.LastSync != nil {
			lastSync := account.LastSync.In(time.Local).Format(time.RFC3339)
			item.LastSync = &lastSync
		}
		response = append(response, item)
	}

	c.JSON(http.StatusOK, gin.H{
		"accounts": response,
		"total":    len(response),
	})
}

// APIDeleteAccount removes an account together with its tweets. An account
// still listed in the seed file comes back on the next seed sync.
func (h *Handler) APIDeleteAccount(c *gin.Context) {
	ctx := c.Request.Context()
	username := strings.TrimPrefix(c.Param("username"), "@")

	account, err := h.repos.Accounts.GetAccountByUsername(ctx, username)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "get_account", "account", username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if err := h.repos.Accounts.DeleteAccount(ctx, account.ID); err != nil {
		slog.Error("Database error", "operation", "delete_account", "account", username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if err := h.repos.Logs.AddLog(ctx, database.ActionSystem,
		fmt.Sprintf("Account @%s deleted", account.Username), database.StatusInfo); err != nil {
		slog.Error("Failed to write activity log", "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted", "username": account.Username})
}

func (h *Handler) APIListReplacements(c *gin.Context) {
	replacements, err := h.replacements.ListReplacements(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "list_replacements", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := make([]replacementResponse, 0, len(replacements))
	for _, r := range replacements {
		response = append(response, replacementResponse{
			ID:             r.ID,
			OriginalURL:    r.OriginalURL,
			ReplacementURL: r.ReplacementURL,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"replacements": response,
		"total":        len(response),
	})
}

func (h *Handler) APIFetchAccount(c *gin.Context) {
	username := strings.TrimPrefix(c.Param("username"), "@")
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing username parameter"})
		return
	}

	count, ok := bindCount(c)
	if !ok {
		return
	}
	count = min(count, h.fetchCap)

	account, err := h.repos.Accounts.GetAccountByUsername(c.Request.Context(), username)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "get_account", "account", username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	h.enqueue(c, tasks.NewFetchAccountTask(h.runner, account.Username, count))
}

func (h *Handler) APIPostTweet(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tweet id"})
		return
	}

	tweet, err := h.repos.Tweets.GetTweet(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tweet not found"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "get_tweet", "tweet_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if tweet.Posted {
		c.JSON(http.StatusConflict, gin.H{"error": "Tweet already posted"})
		return
	}

	h.enqueue(c, tasks.NewPostTweetTask(h.runner, id))
}

// APITestConnection runs inline so the caller sees the upstream answer.
func (h *Handler) APITestConnection(c *gin.Context) {
	user, err := h.verifier.Me(c.Request.Context())
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, source.ErrNotConfigured) {
			status = http.StatusServiceUnavailable
		}
		slog.Warn("Connection test failed", "error", err)
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"name":     user.Name,
		},
	})
}

func (h *Handler) enqueue(c *gin.Context, task tasks.TaskInterface) {
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Error enqueueing task", "type", string(task.GetType()), "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "accepted",
		"task_id": task.GetID(),
		"type":    task.GetType(),
	})
}

func (h *Handler) settingsWithDefaults(c *gin.Context) (map[string]string, error) {
	stored, err := h.repos.Settings.GetAllSettings(c.Request.Context())
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, len(database.DefaultSettings))
	for key, value := range database.DefaultSettings {
		values[key] = value
	}
	for key, value := range stored {
		values[key] = value
	}
	return values, nil
}

// bindCount reads an optional {"count": n} body. It writes the 400 response
// itself and reports false when the body is unusable.
func bindCount(c *gin.Context) (int, bool) {
	var req countRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body", "details": err.Error()})
		return 0, false
	}

	if req.Count == nil {
		return defaultActionCount, true
	}
	if *req.Count <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "count must be a positive integer"})
		return 0, false
	}
	return *req.Count, true
}

func settingValue(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
