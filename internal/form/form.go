package form

import (
	"errors"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate はパッケージ共有のバリデータ。
// エラーメッセージのフィールド名にはformタグの名前を使う。
var validate = newValidator()

var (
	slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	// usernamePattern はURLパスに使われるユーザー名の形式。
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// グループslug用。URLパスに入るので小文字英数とハイフンに限定する。
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// PostForm は投稿の作成・編集フォーム。
type PostForm struct {
	Text      string `form:"text" validate:"required,max=10000"`
	GroupSlug string `form:"group" validate:"omitempty,slug"`
}

// CommentForm はコメント投稿フォーム。
type CommentForm struct {
	Text string `form:"text" validate:"required,max=1000"`
}

// GroupForm はグループ作成フォーム。
type GroupForm struct {
	Title       string `form:"title" validate:"required,max=200"`
	Slug        string `form:"slug" validate:"required,max=100,slug"`
	Description string `form:"description" validate:"max=2000"`
}

// ProfileForm はプロフィール編集フォーム。
type ProfileForm struct {
	Username  string `form:"username" validate:"required,max=150,username"`
	FirstName string `form:"first_name" validate:"max=150"`
	LastName  string `form:"last_name" validate:"max=150"`
	Email     string `form:"email" validate:"omitempty,email,max=254"`
}

// BindPostForm はPOSTされた値からPostFormを組み立てて検証する。
func BindPostForm(values url.Values) (PostForm, map[string]string) {
	f := PostForm{
		Text:      strings.TrimSpace(values.Get("text")),
		GroupSlug: strings.TrimSpace(values.Get("group")),
	}
	return f, check(f)
}

// BindCommentForm はPOSTされた値からCommentFormを組み立てて検証する。
func BindCommentForm(values url.Values) (CommentForm, map[string]string) {
	f := CommentForm{
		Text: strings.TrimSpace(values.Get("text")),
	}
	return f, check(f)
}

// BindGroupForm はPOSTされた値からGroupFormを組み立てて検証する。
func BindGroupForm(values url.Values) (GroupForm, map[string]string) {
	f := GroupForm{
		Title:       strings.TrimSpace(values.Get("title")),
		Slug:        strings.TrimSpace(values.Get("slug")),
		Description: strings.TrimSpace(values.Get("description")),
	}
	return f, check(f)
}

// BindProfileForm はPOSTされた値からProfileFormを組み立てて検証する。
func BindProfileForm(values url.Values) (ProfileForm, map[string]string) {
	f := ProfileForm{
		Username:  strings.TrimSpace(values.Get("username")),
		FirstName: strings.TrimSpace(values.Get("first_name")),
		LastName:  strings.TrimSpace(values.Get("last_name")),
		Email:     strings.TrimSpace(values.Get("email")),
	}
	return f, check(f)
}

// check は検証し、違反をmap[フィールド名]メッセージに変換して返す。
// 違反がない場合はnilを返す。
func check(form any) map[string]string {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"form": "invalid form"}
	}

	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = message(fe)
	}
	return details
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters long"
	case "min":
		return "must be at least " + fe.Param() + " characters long"
	case "slug":
		return "must contain only lowercase letters, digits and hyphens"
	case "username":
		return "must contain only letters, digits, dots, hyphens and underscores"
	case "email":
		return "must be a valid email"
	default:
		return "is invalid"
	}
}

// ParsePage はクエリのpageパラメータを解釈する。
// 欠落・非数値・0以下はすべて1ページ目として扱う。
func ParsePage(values url.Values) int {
	page, err := strconv.Atoi(values.Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}
