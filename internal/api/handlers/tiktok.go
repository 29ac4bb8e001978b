package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopsync/internal/models"
	"shopsync/internal/repository"
	"shopsync/internal/services/tiktok"
)

type TikTokHandler struct {
	repos  *repository.Repositories
	auth   *tiktok.AuthManager
	logger *zap.Logger
}

func NewTikTokHandler(repos *repository.Repositories, auth *tiktok.AuthManager, logger *zap.Logger) *TikTokHandler {
	return &TikTokHandler{repos: repos, auth: auth, logger: logger}
}

// Install starts the OAuth flow by handing the caller the provider redirect.
func (h *TikTokHandler) Install(c *gin.Context) {
	authURL, state, err := h.auth.AuthorizationURL(c.Query("state"))
	if err != nil {
		h.logger.Error("failed to build authorization URL", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build authorization URL"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"auth_url": authURL,
		"state":    state,
		"message":  "redirect user to auth_url to complete the OAuth flow",
	})
}

// Callback handles the OAuth redirect: exchange the code, discover the
// authorized shop and create or link the account. An account_id query
// parameter links to an existing account instead of creating one.
func (h *TikTokHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code parameter"})
		return
	}

	bundle, err := h.auth.ExchangeCode(c.Request.Context(), code)
	if err != nil {
		h.logger.Error("code exchange failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	shops, err := h.auth.AuthorizedShops(c.Request.Context(), bundle.AccessToken)
	if err != nil {
		h.logger.Error("shop listing failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if len(shops) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "token is not authorized for any shop"})
		return
	}
	shop := shops[0]
	if wanted := c.Query("shop_id"); wanted != "" {
		found := false
		for _, s := range shops {
			if s.ID == wanted {
				shop = s
				found = true
				break
			}
		}
		if !found {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "token is not authorized for shop " + wanted})
			return
		}
	}

	var account *models.Account
	if raw := c.Query("account_id"); raw != "" {
		accountID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account_id"})
			return
		}
		account, err = h.auth.LinkExistingAccount(c.Request.Context(), uint(accountID), bundle, shop)
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
	} else {
		account, err = h.auth.CreateOrUpdateAccount(c.Request.Context(), bundle, shop)
		if err != nil {
			h.logger.Error("account upsert failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"account": account,
		"message": "shop connected",
	})
}

// ListAccounts returns the active connected accounts.
func (h *TikTokHandler) ListAccounts(c *gin.Context) {
	accounts, err := h.repos.Account.ListActive(c.Request.Context(), models.PlatformTikTok)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

func (h *TikTokHandler) GetAccount(c *gin.Context) {
	account, ok := h.loadAccount(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account})
}

// Disconnect deactivates the account and its credentials. Idempotent.
func (h *TikTokHandler) Disconnect(c *gin.Context) {
	account, ok := h.loadAccount(c)
	if !ok {
		return
	}
	if err := h.auth.DisconnectAccount(c.Request.Context(), account); err != nil {
		h.logger.Error("disconnect failed",
			zap.Uint("account_id", account.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "account disconnected"})
}

func (h *TikTokHandler) loadAccount(c *gin.Context) (*models.Account, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return nil, false
	}
	account, err := h.repos.Account.GetByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return account, true
}
