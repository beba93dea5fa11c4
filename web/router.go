// Package web exposes the conventional request surface over HTTP.
package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/wirehall/quorum/auth"
	"github.com/wirehall/quorum/logger"
	"github.com/wirehall/quorum/service"
	"github.com/wirehall/quorum/store"
)

type Server struct {
	auth      *auth.Authenticator
	store     *store.Store
	questions *service.Questions
	answers   *service.Answers
	bounty    int
}

func NewServer(authenticator *auth.Authenticator, s *store.Store, questions *service.Questions, answers *service.Answers, bounty int) *Server {
	return &Server{
		auth:      authenticator,
		store:     s,
		questions: questions,
		answers:   answers,
		bounty:    bounty,
	}
}

func (s *Server) Router(allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(allowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = allowedOrigins
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	router.POST("/api/signin", s.signIn)

	authorized := router.Group("/api", s.requireUser)
	authorized.POST("/questions", s.createQuestion)
	authorized.PUT("/questions/:id", s.updateQuestion)
	authorized.DELETE("/questions/:id", s.deleteQuestion)
	authorized.POST("/questions/:id/upvote", s.voteQuestion(1))
	authorized.POST("/questions/:id/downvote", s.voteQuestion(-1))
	authorized.POST("/questions/:id/answers", s.createAnswer)
	authorized.PUT("/answers/:id", s.updateAnswer)
	authorized.DELETE("/answers/:id", s.deleteAnswer)
	authorized.POST("/answers/:id/upvote", s.voteAnswer(1))
	authorized.POST("/answers/:id/downvote", s.voteAnswer(-1))
	authorized.POST("/answers/:id/accept", s.acceptAnswer)

	return router
}

// requireUser resolves the caller from the bearer token.
func (s *Server) requireUser(c *gin.Context) {
	header := c.GetHeader("Authorization")
	tokenString, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}

	userID, err := s.auth.Verify(tokenString)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	c.Set("userID", userID)
	c.Next()
}

func callerID(c *gin.Context) int64 {
	return c.GetInt64("userID")
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// writeError maps service errors onto their status and code; anything else
// is an internal failure.
func writeError(c *gin.Context, err error) {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		c.JSON(svcErr.Status, gin.H{"error": svcErr.Code})
		return
	}
	logger.Err().Printf("Request failed: %s", err.Error())
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
}

func (s *Server) signIn(c *gin.Context) {
	var request struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}

	profile, err := s.auth.ExchangeCode(c.Request.Context(), request.Code)
	if err != nil {
		logger.Err().Printf("Sign-in failed: %s", err.Error())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "signin rejected"})
		return
	}

	user, err := s.store.EnsureUser(profile.Email, profile.Name, profile.Picture)
	if err != nil {
		writeError(c, err)
		return
	}

	token, err := s.auth.Issue(user.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

func (s *Server) createQuestion(c *gin.Context) {
	var request struct {
		Title  string `json:"title" binding:"required"`
		Body   string `json:"body" binding:"required"`
		Bounty int    `json:"bounty"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and body are required"})
		return
	}
	if request.Bounty <= 0 {
		request.Bounty = s.bounty
	}

	question := store.Question{
		UserID: callerID(c),
		Title:  request.Title,
		Body:   request.Body,
		Bounty: request.Bounty,
	}
	if err := s.questions.Create(&question); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, question)
}

func (s *Server) updateQuestion(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var request struct {
		Title string `json:"title" binding:"required"`
		Body  string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and body are required"})
		return
	}

	if err := s.questions.Update(callerID(c), id, request.Title, request.Body); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteQuestion(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.questions.Delete(callerID(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) voteQuestion(value int) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		if err := s.questions.Vote(callerID(c), id, value); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) createAnswer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var request struct {
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body is required"})
		return
	}

	answer, err := s.answers.Create(callerID(c), id, request.Body, nil)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, answer)
}

func (s *Server) updateAnswer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var request struct {
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body is required"})
		return
	}

	if err := s.answers.Update(callerID(c), id, request.Body); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteAnswer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.answers.Delete(callerID(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) voteAnswer(value int) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		if err := s.answers.Vote(callerID(c), id, value); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) acceptAnswer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.answers.Accept(callerID(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
