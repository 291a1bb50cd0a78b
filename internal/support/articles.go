package support

import "github.com/hupe1980/assistants/internal/knowledge"

// DefaultArticles seed an empty knowledge base when the knowledge directory
// holds no documents.
var DefaultArticles = []knowledge.Document{
	{
		ID:       "faq-1",
		Text:     "How do I reset my password? Open the login page and click \"Forgot password\". Enter the email address on your account and we will send a reset link that stays valid for 24 hours. If the email does not arrive, check your spam folder.",
		Metadata: map[string]string{"source": "faq-account.md"},
	},
	{
		ID:       "faq-2",
		Text:     "What is your refund policy? Purchases can be refunded within 30 days. Refunds are issued to the original payment method and usually appear within 5 to 7 business days after approval.",
		Metadata: map[string]string{"source": "faq-billing.md"},
	},
	{
		ID:       "faq-3",
		Text:     "How long does shipping take? Standard shipping takes 3 to 5 business days. Express shipping delivers within 1 to 2 business days and can be selected at checkout. Tracking numbers are emailed once the order ships.",
		Metadata: map[string]string{"source": "faq-shipping.md"},
	},
	{
		ID:       "faq-4",
		Text:     "The app crashes or will not start. Make sure you run the latest version, then clear the app cache and restart your device. If the problem persists, reinstall the app and include your device model when contacting support.",
		Metadata: map[string]string{"source": "troubleshooting.md"},
	},
	{
		ID:       "faq-5",
		Text:     "How do I contact a human agent? Our support team is available Monday to Friday, 9am to 5pm. Ask the assistant to open a support ticket and a team member will reply by email.",
		Metadata: map[string]string{"source": "faq-contact.md"},
	},
}
