package entity

import "strings"

// RequestPlaceholder marks where the user's request is inserted into a prompt template.
const RequestPlaceholder = "{{request}}"

type Prompt struct {
	ID   string
	Text string
}

// Compose inserts request verbatim into the template. The request is inserted
// once, after the template has been split, so a placeholder inside the request
// itself is left alone.
func (p Prompt) Compose(request string) string {
	before, after, found := strings.Cut(p.Text, RequestPlaceholder)
	if !found {
		return p.Text + "\n\nRequest: \"" + request + "\""
	}
	return before + request + after
}

const wooCommercePluginPrompt = "\n" +
	"You are a professional WordPress developer. Generate a secure, single-file WooCommerce plugin based on the request below.\n" +
	"\n" +
	"Request: \"" + RequestPlaceholder + "\"\n" +
	"Strict output rules:\n" +
	"    - Always include a properly formatted plugin header using standard WordPress format:\n" +
	"  /*\n" +
	"  Plugin Name: ...\n" +
	"  Description: ...\n" +
	"  Version: ...\n" +
	"  Author: ...\n" +
	"  License: ...\n" +
	"  */\n" +
	"\n" +
	"- Plugin headers must start with a single opening /* and each field should use consistent // or no prefix — do not mix asterisks mid-comment.\n" +
	"- Always include `if (!defined('ABSPATH')) exit;` at the top for security.\n" +
	"- Only output raw PHP starting with `<?php` — no markdown, no explanations, no extra text.\n" +
	"- The plugin must be a valid, installable `.php` file and follow WordPress coding standards.\n" +
	"\n" +
	"Hooks and usage guidelines:\n" +
	"- For cart notices:\n" +
	"  - Use `woocommerce_before_cart` for classic themes.\n" +
	"  - Use `wp_footer` for compatibility with block-based themes.\n" +
	"  - Do NOT use `woocommerce_blocks_cart_block_registration` to output UI — this is incorrect.\n" +
	"\n" +
	"Styling:\n" +
	"- To inject CSS, use `add_action('wp_head', ...)` and output a `<style>` block inside it.\n" +
	"- Do not enqueue external styles or scripts.\n" +
	"- If using `wp_add_inline_style`, only use existing handles like `woocommerce-general` or `woocommerce-inline`.\n" +
	"- To style add-to-cart buttons, use selectors like `.single_add_to_cart_button`, `.add_to_cart_button`, and `.wp-block-button__link`.\n" +
	"\n" +
	"Code correctness:\n" +
	"- Ensure all PHP statements (e.g., `if`, `sprintf`, `echo`) have correctly matched parentheses, quotes, and semicolons.\n" +
	"- Always declare functions using standard syntax: `function name() { ... }` — never include stray quotes or extra characters.\n" +
	"- Validate that the function name used in `add_action()` exactly matches the declared function.\n" +
	"- Do not enqueue styles using `wp_enqueue_style()` without a registered stylesheet — prefer `wp_add_inline_style()` or inline `<style>`.\n" +
	"- Never use `woocommerce_general_settings` to inject frontend styles — it is for admin settings only.\n" +
	"- Never write function declarations inside add_action(). Always declare the function separately first using 'function name() { ... }' and then register it with 'add_action('hook', 'name');'.\n" +
	"- When using printf(), write: printf( __('Text with %s placeholder', 'woocommerce'), wc_price($amount) );\n" +
	"- Never nest wc_price() inside __() — pass formatted values as separate printf arguments.\n" +
	"- Ensure all function calls (e.g., printf, __, sprintf) use properly closed parentheses and correct argument order.\n" +
	"\n" +
	"Best practices:\n" +
	"- When using cart totals, use `WC()->cart->get_subtotal()` or `WC()->cart->get_displayed_subtotal()` — never `WC()->cart->subtotal`.\n" +
	"- For price formatting, always use `wc_price()`.\n" +
	"- Echo notices using `<div class=\"woocommerce-info\">...</div>` or `<div class=\"woocommerce-message\">...</div>`.\n" +
	"- Avoid unsafe or unnecessary functions like `eval`, `exec`, `system`, `base64_decode`, etc.\n" +
	"\n" +
	"Your output must strictly follow all of the above. Output only PHP code — no commentary, explanations, or markdown."

var WooCommercePluginPrompt = Prompt{
	ID:   "woocommerce_plugin",
	Text: wooCommercePluginPrompt,
}

// Suggestions are example requests offered to clients.
var Suggestions = []string{
	"Change add to cart button to blue",
	"Add a free shipping notice",
	"Send email to admin on new order",
}
