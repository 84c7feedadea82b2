package types

// Messages holds the user-visible texts for one locale.
// PinNotification is a fmt template taking the client name and the PIN, in that order.
type Messages struct {
	ClientNotFound     string
	PhoneRequired      string
	ChannelUnavailable string
	Internal           string
	Throttled          string
	InvalidPin         string
	TooManyAttempts    string
	InvalidFilter      string
	PinNotification    string
}

const DefaultLocale = "ar"

var catalogs = map[string]Messages{
	"ar": {
		ClientNotFound:     "العميل غير موجود",
		PhoneRequired:      "لا يوجد رقم هاتف مسجل لهذا العميل، يرجى إضافة رقم الهاتف أولاً",
		ChannelUnavailable: "تم تعيين الرمز السري الجديد لكن قناة المراسلة غير متصلة، يرجى إبلاغ العميل بالرمز يدوياً",
		Internal:           "حدث خطأ داخلي، يرجى المحاولة لاحقاً",
		Throttled:          "تم تجاوز الحد المسموح لإعادة تعيين الرمز السري، يرجى المحاولة لاحقاً",
		InvalidPin:         "الرمز السري يجب أن يتكون من 6 أرقام",
		TooManyAttempts:    "محاولات خاطئة كثيرة، يرجى المحاولة لاحقاً",
		InvalidFilter:      "تعبير التصفية غير صالح",
		PinNotification:    "مرحباً %s، تم تعيين رمز سري جديد لحسابك: %s\nلا تشارك هذا الرمز مع أي شخص.",
	},
	"en": {
		ClientNotFound:     "client not found",
		PhoneRequired:      "client has no phone number on record; add a phone number first",
		ChannelUnavailable: "PIN was reset but the messaging channel is not connected; share the new PIN with the client manually",
		Internal:           "internal error, please try again later",
		Throttled:          "too many PIN resets for this client, please try again later",
		InvalidPin:         "PIN must be exactly 6 digits",
		TooManyAttempts:    "too many failed attempts, please try again later",
		InvalidFilter:      "invalid filter expression",
		PinNotification:    "Hello %s, a new PIN was set for your account: %s\nDo not share this PIN with anyone.",
	},
}

// MessagesFor returns the catalog for locale, falling back to DefaultLocale.
func MessagesFor(locale string) Messages {
	if m, ok := catalogs[locale]; ok {
		return m
	}
	return catalogs[DefaultLocale]
}
