package handlers

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/medicalia/ordonnances-api/logging"
)

// Store listings shown when the app is not installed.
const (
	appStoreLink  = "https://apps.apple.com/app/medicalia"
	playStoreLink = "https://play.google.com/store/apps/details?id=com.medicalia.app"
)

var qrPageTemplate = template.Must(template.New("qrpage").Parse(`<!DOCTYPE html>
<html lang="fr">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <meta http-equiv="Cache-Control" content="no-store, no-cache, must-revalidate, proxy-revalidate">
  <meta http-equiv="Pragma" content="no-cache">
  <meta http-equiv="Expires" content="0">
  <title>{{.Title}} - Medicalia</title>
  <style>
    * { margin: 0; padding: 0; box-sizing: border-box; }
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
      background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
      min-height: 100vh;
      display: flex;
      align-items: center;
      justify-content: center;
      padding: 20px;
    }
    .container {
      background: white;
      border-radius: 20px;
      padding: 40px;
      max-width: 400px;
      width: 100%;
      box-shadow: 0 20px 60px rgba(0,0,0,0.3);
      text-align: center;
    }
    .logo { font-size: 48px; margin-bottom: 20px; }
    h1 { color: #333; font-size: 28px; margin-bottom: 10px; font-weight: 600; }
    .subtitle { color: #666; font-size: 16px; margin-bottom: 30px; line-height: 1.5; }
    .app-button {
      display: inline-block;
      background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
      color: white;
      padding: 16px 32px;
      border-radius: 12px;
      text-decoration: none;
      font-size: 18px;
      font-weight: 600;
      margin: 10px 0;
      box-shadow: 0 4px 15px rgba(102, 126, 234, 0.4);
      width: 100%;
      max-width: 280px;
    }
    .store-button {
      display: inline-block;
      background: #f5f5f5;
      color: #333;
      padding: 12px 24px;
      border-radius: 12px;
      text-decoration: none;
      font-size: 16px;
      font-weight: 500;
      margin: 10px 0;
      width: 100%;
      max-width: 280px;
    }
    .info-text { color: #888; font-size: 14px; margin-top: 20px; line-height: 1.6; }
    .warning {
      background: #fff3cd;
      border-left: 4px solid #ffc107;
      padding: 12px;
      margin-top: 20px;
      border-radius: 8px;
      font-size: 13px;
      color: #856404;
      text-align: left;
    }
    .warning strong { display: block; margin-bottom: 4px; }
  </style>
</head>
<body>
  <div class="container">
    <div class="logo">{{.Icon}}</div>
    <h1>{{.Title}}</h1>
    <p class="subtitle">{{.Subtitle}}</p>
    <a href="{{.DeepLink}}" class="app-button" id="appButton">Ouvrir dans Medicalia</a>
    {{if .StoreLink}}<a href="{{.StoreLink}}" class="store-button" target="_blank" rel="noopener noreferrer">Installer l'app</a>
    {{else}}<p class="info-text">Installez l'app Medicalia depuis l'App Store ou Google Play.</p>
    {{end}}<div class="warning">
      <strong>&#9888;&#65039; Sécurité</strong>
      Ne donnez pas ce QR code à n'importe qui. Il contient des informations médicales confidentielles.
    </div>
  </div>
  <script>
    (function() {
      var deepLink = {{.DeepLink}};
      setTimeout(function() {
        window.location.href = deepLink;
      }, 500);
    })();
  </script>
</body>
</html>`))

var errorPageTemplate = template.Must(template.New("errorpage").Parse(`<!DOCTYPE html>
<html lang="fr">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <meta http-equiv="Cache-Control" content="no-store, no-cache, must-revalidate">
  <title>Erreur - Medicalia</title>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
      text-align: center;
      padding: 40px 20px;
      background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
      min-height: 100vh;
      display: flex;
      align-items: center;
      justify-content: center;
    }
    .container { background: white; padding: 40px; border-radius: 20px; max-width: 400px; }
    h1 { color: #333; margin-bottom: 10px; }
    p { color: #666; }
  </style>
</head>
<body>
  <div class="container">
    <h1>Erreur</h1>
    <p>{{.}}</p>
  </div>
</body>
</html>`))

type qrPageData struct {
	Title     string
	Subtitle  string
	Icon      string
	DeepLink  template.URL
	StoreLink template.URL
}

// detectDevice classifies the client from its User-Agent.
func detectDevice(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"), strings.Contains(ua, "ipod"):
		return "ios"
	case strings.Contains(ua, "android"):
		return "android"
	default:
		return "desktop"
	}
}

// storeLink returns the store listing for the device, empty on desktop.
func storeLink(device string) string {
	switch device {
	case "ios":
		return appStoreLink
	case "android":
		return playStoreLink
	default:
		return ""
	}
}

func setNoStoreHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

func renderErrorPage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := errorPageTemplate.Execute(w, message); err != nil {
		logging.Error("Error page rendering failed", "error", err)
	}
}

func (h *Handler) renderQRPage(w http.ResponseWriter, r *http.Request, data qrPageData) {
	setNoStoreHeaders(w)
	data.StoreLink = template.URL(storeLink(detectDevice(r.UserAgent())))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := qrPageTemplate.Execute(w, data); err != nil {
		logging.Error("QR page rendering failed", "error", err)
	}
}

// OrdonnancePage serves the hand-off page a universal QR scan lands on for
// an ordonnance token: it tries the deep link and offers the store.
func (h *Handler) OrdonnancePage(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if strings.TrimSpace(token) == "" {
		setNoStoreHeaders(w)
		renderErrorPage(w, http.StatusBadRequest, "Token invalide")
		return
	}

	h.renderQRPage(w, r, qrPageData{
		Title:    "Ordonnance Medicalia",
		Subtitle: "Accédez à votre ordonnance médicale en toute sécurité",
		Icon:     "\U0001F3E5",
		DeepLink: template.URL("medicalia://o/" + token),
	})
}

// PassportPage is the same hand-off page for passport tokens.
func (h *Handler) PassportPage(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if strings.TrimSpace(token) == "" {
		setNoStoreHeaders(w)
		renderErrorPage(w, http.StatusBadRequest, "Token invalide")
		return
	}

	h.renderQRPage(w, r, qrPageData{
		Title:    "Passeport Santé Medicalia",
		Subtitle: "Accédez à votre résumé médical en toute sécurité",
		Icon:     "\U0001F4CB",
		DeepLink: template.URL("medicalia://p/" + token),
	})
}

// openRedirect implements the JS-free open flow: 302 to the deep link by
// default, to the store with ?fallback=1, back to the HTML page on desktop.
func (h *Handler) openRedirect(w http.ResponseWriter, r *http.Request, pagePrefix, scheme string) {
	token := chi.URLParam(r, "token")
	if strings.TrimSpace(token) == "" {
		renderErrorPage(w, http.StatusBadRequest, "Token invalide")
		return
	}

	if r.URL.Query().Get("fallback") == "1" {
		if link := storeLink(detectDevice(r.UserAgent())); link != "" {
			http.Redirect(w, r, link, http.StatusFound)
			return
		}
		http.Redirect(w, r, pagePrefix+token, http.StatusFound)
		return
	}

	http.Redirect(w, r, scheme+token, http.StatusFound)
}

// OpenOrdonnance redirects an ordonnance token straight into the app.
func (h *Handler) OpenOrdonnance(w http.ResponseWriter, r *http.Request) {
	h.openRedirect(w, r, "/o/", "medicalia://o/")
}

// OpenPassport redirects a passport token straight into the app.
func (h *Handler) OpenPassport(w http.ResponseWriter, r *http.Request) {
	h.openRedirect(w, r, "/p/", "medicalia://p/")
}
