package prompts

// Curated transformation instructions. Every entry pins the subject's pose
// and placement so iterations stay comparable; categories cover character,
// material, environment, and art-style restylings.

var characterPool = []string{
	"Change the clothing and styling to make the person look like a Muppet character while preserving their exact facial features, expression, and pose. Add fuzzy texture to clothes and bright felt-like colors.",
	"Restyle the person as a LEGO minifigure while maintaining their identical facial structure, eye color, and expression. Add plastic brick texture and bright LEGO-style colors.",
	"Transform the person into animated cartoon style with yellow skin tone and simplified features while keeping the exact same face, hairstyle, and pose. Use bold outlines and bright flat colors in classic 2D animation style.",
}

var diversePool = []string{
	// Material transformations
	"Transform the person to appear made of glowing neon light while preserving their identical shape and pose. Add bright electric colors and subtle luminous effects.",
	"Convert to oil painting style while maintaining the identical composition and subject placement. Add visible brushstrokes and rich color depth.",
	"Change the person to look like a marble statue while keeping their exact position and proportions. Add white marble texture with subtle veining.",
	"Convert the person to look like they're made of carved wood while maintaining their exact pose and facial structure. Add visible wood grain and natural brown tones.",
	"Change to clay animation style while keeping the person's exact pose and expression. Add smooth, matte clay textures.",
	"Make the person appear made of liquid mercury while preserving their identical shape and positioning. Add reflective, flowing metal effects.",

	// Environmental changes
	"Change the background to outer space while keeping the person in the exact same position, scale, and pose. Add starfield and nebula effects around them.",
	"Replace the background with underwater scene while maintaining identical subject placement and camera angle. Add floating bubbles and aquatic lighting.",
	"Change the setting to medieval castle while keeping the person in the exact same position and pose. Add stone architecture and torch lighting.",
	"Replace the background with cyberpunk cityscape while preserving the subject's identical positioning. Add neon lights and futuristic buildings.",
	"Change the environment to tropical jungle while maintaining the exact same subject placement and framing. Add lush vegetation and dappled lighting.",
	"Replace the background with snowy mountain landscape while keeping the person in identical position and scale. Add snow effects and crisp mountain air.",

	// Artistic styles
	"Convert to stained glass art style while preserving the subject's positioning. Add rich colors with black outlines and light transmission effects.",
	"Change to watercolor painting style while preserving the exact scene composition. Add soft, flowing paint effects and paper texture.",
	"Convert to pencil sketch style while maintaining identical subject positioning. Add natural graphite lines and cross-hatching details.",
	"Convert to comic book style while maintaining the identical composition. Add bold outlines, halftone dots, and vibrant comic colors.",
	"Change to vintage sepia photograph style while preserving exact positioning. Add aged paper texture and antique photo effects.",

	// Creative transformations
	"Replace the clothing with futuristic robot armor while keeping the person's face, expression, and body position identical. Add metallic textures and glowing blue accents.",
	"Change the outfit to vampire styling while maintaining identical facial features and expression. Add gothic clothing and dramatic lighting.",
	"Change the clothing to heroic character costume while preserving the person's identical facial features, body position, and expression. Add colorful cape and bold costume design with emblem.",
	"Restyle as a pirate character while keeping the exact same face and pose. Add period-appropriate costume with weathered textures.",
	"Change clothing to medieval knight armor while preserving the person's facial features and body position. Add realistic metal textures and heraldic details.",
	"Modify the styling to steampunk aesthetic while maintaining identical facial features and pose. Add brass goggles, gears, and Victorian-era clothing.",

	// Fantasy and creature styles
	"Change the person to look like an elegant elf while preserving their exact facial structure and pose. Add pointed ears and ethereal lighting.",
	"Transform into a wise wizard appearance while keeping identical facial features and body position. Add flowing robes and magical elements.",
	"Modify to look like a fierce warrior while maintaining the exact same face and pose. Add battle-worn armor and determined expression enhancements.",
}

// fallbackPool substitutes for the generative source when it fails or
// under-delivers. Entries are consumed in order so the substitution is
// deterministic.
var fallbackPool = []string{
	"Convert to pop art style while maintaining the exact subject positioning and composition. Add bright, contrasting colors and Ben-Day dots.",
	"Change to art nouveau style while preserving the identical scene layout. Add flowing, organic lines and decorative patterns.",
	"Convert to Japanese ukiyo-e woodblock print style while preserving the subject positioning. Add traditional colors and flowing line work.",
	"Change to baroque painting style while maintaining the exact composition and lighting. Add rich, dramatic colors and ornate details.",
	"Convert to mosaic tile art while maintaining the identical subject placement. Add small, colorful tiles with grout lines.",
	"Change the person to appear made of ice while maintaining their identical pose and proportions. Add transparent, crystalline textures with blue tints.",
	"Change to surreal melting style while keeping the person's basic form recognizable. Add flowing and distorted elements.",
	"Convert to minimalist geometric style while keeping the subject's basic shape and position. Use simple shapes and limited color palette.",
}
