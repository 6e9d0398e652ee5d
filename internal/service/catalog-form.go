package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Dmitryntvh/AVITO/internal/domain"
)

var validate = validator.New()

// ModelForm — поля формы редактирования модели в админке.
type ModelForm struct {
	Code          string
	Name          string
	Short         string
	PriceDrawings string
	DrawingsURL   string
	KitsText      string
	ImagesText    string
}

// Model собирает модель из формы. Цена чертежей без пробелов,
// нечисловая цена становится 0.
func (f ModelForm) Model() domain.CatalogModel {
	return domain.CatalogModel{
		Code:          strings.TrimSpace(f.Code),
		Name:          strings.TrimSpace(f.Name),
		Short:         strings.TrimSpace(f.Short),
		PriceDrawings: ParsePriceOrZero(f.PriceDrawings),
		DrawingsURL:   strings.TrimSpace(f.DrawingsURL),
		Kits:          ParseKitsText(f.KitsText),
		Images:        imagesFromURLs(ParseImagesText(f.ImagesText)),
	}
}

// ValidateModel проверяет обязательные поля модели.
func ValidateModel(m domain.CatalogModel) error {
	if err := validate.Struct(m); err != nil {
		var fields []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields = append(fields, strings.ToLower(fe.Field()))
			}
			return fmt.Errorf("invalid model fields: %s", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

// ParseKitsText разбирает строки "материал|цена". Строки без "|",
// с пустым материалом или нецелой ценой пропускаются.
func ParseKitsText(text string) []domain.Kit {
	var kits []domain.Kit
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		material, price, ok := strings.Cut(line, "|")
		if !ok {
			continue
		}
		material = strings.TrimSpace(material)
		if material == "" {
			continue
		}
		n, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(price), " ", ""))
		if err != nil {
			continue
		}
		kits = append(kits, domain.Kit{Material: material, Price: n})
	}
	return kits
}

func KitsToText(kits []domain.Kit) string {
	lines := make([]string, 0, len(kits))
	for _, k := range kits {
		lines = append(lines, fmt.Sprintf("%s | %d", k.Material, k.Price))
	}
	return strings.Join(lines, "\n")
}

// ParseImagesText оставляет http(s)-ссылки по одной на строку,
// без повторов, в исходном порядке.
func ParseImagesText(text string) []string {
	var urls []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		url := strings.TrimSpace(line)
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			continue
		}
		if seen[url] {
			continue
		}
		seen[url] = true
		urls = append(urls, url)
	}
	return urls
}

func ImagesToText(urls []string) string {
	return strings.Join(urls, "\n")
}

func imagesFromURLs(urls []string) []domain.Image {
	images := make([]domain.Image, 0, len(urls))
	for i, u := range urls {
		images = append(images, domain.Image{URL: u, SortOrder: i + 1})
	}
	return images
}
