package services

import (
	"charge-station-locator/internal/domain"
	"fmt"
)

// User-facing copy. The application speaks Turkish.
const (
	msgNoStations = "Bu alanda şarj istasyonu bulunamadı"
	msgFoundFmt   = "%d şarj istasyonu bulundu"
)

var (
	noticePermissionDenied = domain.Notice{
		Kind:    domain.NoticePermissionDenied,
		Title:   "Konum İzni Gerekli",
		Message: "Konum servisinize erişim izni verilmedi. Varsayılan konum kullanılıyor.",
	}
	noticeLocationError = domain.Notice{
		Kind:    domain.NoticeLocationError,
		Title:   "Konum Hatası",
		Message: "Konumunuz alınamadı. Lütfen konum servislerinizi kontrol edin.",
	}
	noticeFallbackData = domain.Notice{
		Kind:    domain.NoticeFallbackData,
		Title:   "Veri Yükleme Hatası",
		Message: "Şarj istasyonu verileri yüklenirken bir hata oluştu. Yerel veriler kullanılıyor.",
	}
	noticeLanguageFallback = domain.Notice{
		Kind:    domain.NoticeLanguageFallback,
		Title:   "Dil Uyumluluk Sorunu",
		Message: "Türkçe sesli yönlendirme şu anda çalışmıyor. İngilizce yönlendirme kullanılıyor.",
	}
)

func noticeVoiceGuidance(enabled bool) domain.Notice {
	msg := "Sesli yönlendirme kapatıldı."
	if enabled {
		msg = "Sesli yönlendirme açıldı."
	}
	return domain.Notice{Kind: domain.NoticeVoiceGuidance, Title: "Sesli Yönlendirme", Message: msg}
}

// ResultSummary is the one-line description shown under the radius controls.
func ResultSummary(n int) string {
	if n == 0 {
		return msgNoStations
	}
	return fmt.Sprintf(msgFoundFmt, n)
}

type nopNotifier struct{}

func (nopNotifier) Notify(domain.Notice) {}
