// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package web

import (
	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/cr0nhq/cr0n/internal/site"
)

type createSiteRequest struct {
	Name string `json:"name"`
}

type uploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

func (s *Server) listSites(c *gin.Context) {
	identity, _ := Identity(c)
	sites, err := s.cfg.Sites.List(c.Request.Context(), identity.UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	if sites == nil {
		sites = []site.Membership{}
	}
	ok(c, gin.H{"sites": sites})
}

func (s *Server) createSite(c *gin.Context) {
	var req createSiteRequest
	if !s.bind(c, &req) {
		return
	}

	identity, _ := Identity(c)
	created, err := s.cfg.Sites.Create(c.Request.Context(), identity.UserID, req.Name, requestMeta(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, gin.H{"site": created})
}

func (s *Server) planLimit(c *gin.Context) {
	identity, _ := Identity(c)
	result, err := s.cfg.Enforcer.Check(c.Request.Context(), identity.UserID, c.Param("resource"))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, gin.H{"allowed": result.Allowed, "current": result.Current, "limit": result.Limit, "plan": result.Plan})
}

func (s *Server) uploadURL(c *gin.Context) {
	if s.cfg.Media == nil {
		s.abortCode(c, CodeNotConfigured, "media storage is not configured")
		return
	}

	siteID, err := ulid.ParseStrict(c.Param("siteID"))
	if err != nil {
		s.abortCode(c, CodeInvalidID, "invalid site id %q", c.Param("siteID"))
		return
	}

	var req uploadRequest
	if !s.bind(c, &req) {
		return
	}

	identity, _ := Identity(c)
	upload, err := s.cfg.Media.UploadURL(c.Request.Context(), identity, siteID, req.Filename, req.ContentType)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, gin.H{"upload": upload})
}
