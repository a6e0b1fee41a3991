package service

import (
	"errors"
	"fmt"
	"testing"

	"treehub/internal/model"
)

type fakeLocaleRepo struct {
	findFn   func(cultures []string) ([]model.LocaleResource, error)
	upserted []*model.LocaleResource
}

func (f *fakeLocaleRepo) FindByCultures(cultures []string) ([]model.LocaleResource, error) {
	if f.findFn == nil {
		return nil, errFakeNotWired
	}
	return f.findFn(cultures)
}

func (f *fakeLocaleRepo) Upsert(resource *model.LocaleResource) error {
	f.upserted = append(f.upserted, resource)
	return nil
}

// TestLocaleService_GetStrings_FallbackMerge 验证回退链合并：
// zh-CN 缺失的键回退 zh，再缺回退默认 culture，更具体的永远覆盖更泛的。
func TestLocaleService_GetStrings_FallbackMerge(t *testing.T) {
	var queried []string
	repo := &fakeLocaleRepo{
		findFn: func(cultures []string) ([]model.LocaleResource, error) {
			queried = cultures
			return []model.LocaleResource{
				{Culture: "en", Name: "hello", Value: "Hello"},
				{Culture: "en", Name: "bye", Value: "Bye"},
				{Culture: "en", Name: "ok", Value: "OK"},
				{Culture: "zh", Name: "hello", Value: "你好"},
				{Culture: "zh", Name: "bye", Value: "再见"},
				{Culture: "zh-CN", Name: "hello", Value: "您好"},
			}, nil
		},
	}
	svc := NewLocaleService(repo, nil, "en", 0)

	table, err := svc.GetStrings("zh-CN")
	if err != nil {
		t.Fatalf("GetStrings() error: %v", err)
	}
	if fmt.Sprintf("%v", queried) != "[en zh zh-CN]" {
		t.Fatalf("unexpected fallback chain: %v", queried)
	}
	want := map[string]string{"hello": "您好", "bye": "再见", "ok": "OK"}
	for name, value := range want {
		if table[name] != value {
			t.Fatalf("key %q: want %q, got %q", name, value, table[name])
		}
	}
}

// TestLocaleService_GetStrings_DefaultCulture 验证默认 culture 不重复出现在链里。
func TestLocaleService_GetStrings_DefaultCulture(t *testing.T) {
	var queried []string
	repo := &fakeLocaleRepo{
		findFn: func(cultures []string) ([]model.LocaleResource, error) {
			queried = cultures
			return nil, nil
		},
	}
	svc := NewLocaleService(repo, nil, "en", 0)

	if _, err := svc.GetStrings("en"); err != nil {
		t.Fatalf("GetStrings() error: %v", err)
	}
	if fmt.Sprintf("%v", queried) != "[en]" {
		t.Fatalf("expected single-culture chain [en], got %v", queried)
	}

	if _, err := svc.GetStrings("en-US"); err != nil {
		t.Fatalf("GetStrings() error: %v", err)
	}
	if fmt.Sprintf("%v", queried) != "[en en-US]" {
		t.Fatalf("base culture equal to default must be skipped, got %v", queried)
	}
}

// TestLocaleService_GetString_MissingKeyReturnsName 验证缺键时返回键名本身。
func TestLocaleService_GetString_MissingKeyReturnsName(t *testing.T) {
	repo := &fakeLocaleRepo{
		findFn: func(cultures []string) ([]model.LocaleResource, error) {
			return []model.LocaleResource{
				{Culture: "en", Name: "hello", Value: "Hello"},
			}, nil
		},
	}
	svc := NewLocaleService(repo, nil, "en", 0)

	got, err := svc.GetString("en", "hello")
	if err != nil || got != "Hello" {
		t.Fatalf(`GetString("hello") = %q, %v`, got, err)
	}
	got, err = svc.GetString("en", "no.such.key")
	if err != nil || got != "no.such.key" {
		t.Fatalf("missing key should fall back to key name, got %q, %v", got, err)
	}
	if _, err := svc.GetString("en", "  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank name, got: %v", err)
	}
}

func TestLocaleService_Set(t *testing.T) {
	repo := &fakeLocaleRepo{}
	svc := NewLocaleService(repo, nil, "en", 0)

	if err := svc.Set("zh-CN", "hello", "您好"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if len(repo.upserted) != 1 || repo.upserted[0].Culture != "zh-CN" || repo.upserted[0].Name != "hello" {
		t.Fatalf("unexpected upsert: %+v", repo.upserted)
	}
	if err := svc.Set("", "hello", "您好"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty culture, got: %v", err)
	}
}
