package handler

import (
	"time"

	"github.com/hitoshi/postline/internal/feed"
	"github.com/hitoshi/postline/internal/model"
)

// postResponse は投稿1件のAPIレスポンス。
type postResponse struct {
	ID             int64     `json:"id"`
	Text           string    `json:"text"`
	AuthorUsername string    `json:"author_username"`
	AuthorFullName string    `json:"author_full_name"`
	GroupSlug      *string   `json:"group_slug,omitempty"`
	GroupTitle     *string   `json:"group_title,omitempty"`
	ImageURL       *string   `json:"image_url,omitempty"`
	PublishedAt    time.Time `json:"published_at"`
	CommentCount   int       `json:"comment_count"`
	LikeCount      int       `json:"like_count"`
	Liked          bool      `json:"liked"`
}

// commentResponse はコメント1件のAPIレスポンス。
type commentResponse struct {
	ID             int64     `json:"id"`
	AuthorUsername string    `json:"author_username"`
	AuthorFullName string    `json:"author_full_name"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}

// groupResponse はグループのAPIレスポンス。
type groupResponse struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// profileResponse はユーザープロフィールのAPIレスポンス。
type profileResponse struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	FullName  string `json:"full_name"`
}

// paginatorResponse はページネーション情報のAPIレスポンス。
type paginatorResponse struct {
	Page       int  `json:"page"`
	TotalPages int  `json:"total_pages"`
	TotalCount int  `json:"total_count"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// feedPageResponse はフィード1ページ分のAPIレスポンス。
// グループフィードやプロフィールフィードでは対象エンティティも含む。
type feedPageResponse struct {
	Posts     []postResponse    `json:"posts"`
	Paginator paginatorResponse `json:"paginator"`
	Group     *groupResponse    `json:"group,omitempty"`
	Author    *profileResponse  `json:"author,omitempty"`
	Following *bool             `json:"following,omitempty"`
}

// toPostResponse はmodel.PostWithMetaからAPIレスポンスに変換する。
func toPostResponse(p *model.PostWithMeta) postResponse {
	return postResponse{
		ID:             p.ID,
		Text:           p.Text,
		AuthorUsername: p.AuthorUsername,
		AuthorFullName: p.AuthorFullName,
		GroupSlug:      p.GroupSlug,
		GroupTitle:     p.GroupTitle,
		ImageURL:       p.ImageURL,
		PublishedAt:    p.PublishedAt,
		CommentCount:   p.CommentCount,
		LikeCount:      p.LikeCount,
		Liked:          p.Liked,
	}
}

// toCommentResponse はmodel.CommentWithAuthorからAPIレスポンスに変換する。
func toCommentResponse(c *model.CommentWithAuthor) commentResponse {
	return commentResponse{
		ID:             c.ID,
		AuthorUsername: c.AuthorUsername,
		AuthorFullName: c.AuthorFullName,
		Text:           c.Text,
		CreatedAt:      c.CreatedAt,
	}
}

// toGroupResponse はmodel.GroupからAPIレスポンスに変換する。
func toGroupResponse(g *model.Group) *groupResponse {
	return &groupResponse{
		Slug:        g.Slug,
		Title:       g.Title,
		Description: g.Description,
	}
}

// toProfileResponse はmodel.UserからAPIレスポンスに変換する。
func toProfileResponse(u *model.User) *profileResponse {
	return &profileResponse{
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		FullName:  u.FullName(),
	}
}

// toFeedPageResponse はfeed.PageからAPIレスポンスに変換する。
func toFeedPageResponse(page *feed.Page) feedPageResponse {
	posts := make([]postResponse, 0, len(page.Posts))
	for i := range page.Posts {
		posts = append(posts, toPostResponse(&page.Posts[i]))
	}

	resp := feedPageResponse{
		Posts: posts,
		Paginator: paginatorResponse{
			Page:       page.Number,
			TotalPages: page.TotalPages,
			TotalCount: page.TotalCount,
			HasNext:    page.HasNext,
			HasPrev:    page.HasPrev,
		},
	}
	if page.Group != nil {
		resp.Group = toGroupResponse(page.Group)
	}
	if page.Author != nil {
		resp.Author = toProfileResponse(page.Author)
	}
	return resp
}
